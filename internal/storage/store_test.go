package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/san-kum/gravsim/internal/dynamo"
	"github.com/san-kum/gravsim/internal/physics"
	"github.com/san-kum/gravsim/internal/sim"
	"gonum.org/v1/gonum/spatial/r3"
)

func testRecording() *Recording {
	return &Recording{
		Labels: physics.Labels(2),
		Times:  []float64{0, 0.5},
		States: []dynamo.State{
			{0, 0, 0, 1, 1, 1, 0, 0, 0, 1, 1, 0},
			{0.1, 0.1, 0.05, 1.4, 1.4, 0.9, 0.2, 0.2, 0.1, 0.7, 0.7, -0.2},
		},
	}
}

func testMetadata() RunMetadata {
	return RunMetadata{
		Name:    "test",
		Masses:  []float64{2, 1},
		G:       1,
		T1:      10,
		RelTol:  1e-3,
		AbsTol:  1e-6,
		Samples: 2,
		Status:  StatusComplete,
		Metrics: map[string]float64{"energy_drift": 1.5e-4},
	}
}

func TestStoreSaveLoad(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	runID, err := st.Save(testMetadata(), testRecording())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if !strings.HasPrefix(runID, "test_") {
		t.Errorf("unexpected run id %q", runID)
	}

	meta, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if meta.ID != runID || meta.Name != "test" {
		t.Errorf("unexpected metadata %+v", meta)
	}
	if meta.Metrics["energy_drift"] != 1.5e-4 {
		t.Errorf("expected energy_drift 1.5e-4, got %g", meta.Metrics["energy_drift"])
	}
	if meta.Timestamp.IsZero() {
		t.Error("expected timestamp")
	}

	rec, err := st.LoadStates(runID)
	if err != nil {
		t.Fatalf("load states failed: %v", err)
	}
	if rec.SampleCount() != 2 || rec.NumBodies() != 2 {
		t.Fatalf("expected 2 samples of 2 bodies, got %d / %d", rec.SampleCount(), rec.NumBodies())
	}

	want := testRecording()
	for i := 0; i < 2; i++ {
		if rec.TimeAt(i) != want.Times[i] {
			t.Errorf("time %d: got %v, want %v", i, rec.TimeAt(i), want.Times[i])
		}
		got := rec.StateAt(i)
		for j := range want.States[i] {
			if got[j] != want.States[i][j] {
				t.Errorf("state %d component %d: got %v, want %v", i, j, got[j], want.States[i][j])
			}
		}
	}
}

func TestStoreList(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list on missing dir failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected 0 runs, got %d", len(runs))
	}

	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if _, err := st.Save(testMetadata(), testRecording()); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(tmpDir, "junk"), 0755); err != nil {
		t.Fatal(err)
	}

	runs, err = st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("expected 1 run, got %d", len(runs))
	}
}

func TestStoreFileStructure(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	runID, err := st.Save(testMetadata(), testRecording())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	runDir := filepath.Join(tmpDir, runID)
	if _, err := os.Stat(filepath.Join(runDir, "metadata.json")); os.IsNotExist(err) {
		t.Error("metadata.json not created")
	}

	data, err := os.ReadFile(filepath.Join(runDir, "states.csv"))
	if err != nil {
		t.Fatalf("states.csv not readable: %v", err)
	}
	header := strings.SplitN(string(data), "\n", 2)[0]
	if header != "time,r0x,r0y,r0z,r1x,r1y,r1z,v0x,v0y,v0z,v1x,v1y,v1z" {
		t.Errorf("unexpected header %q", header)
	}
}

func TestWriteCSVDimensionMismatch(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, testRecording(), 3)
	if err == nil {
		t.Error("expected error for wrong body count")
	}
}

func TestReadCSVErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad header", "t,a,b\n0,1,2\n"},
		{"bad number", "time,r0x,r0y,r0z,v0x,v0y,v0z\n0,1,2,x,4,5,6\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadCSV(strings.NewReader(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}

	rec, err := ReadCSV(strings.NewReader(""))
	if err != nil || rec.SampleCount() != 0 {
		t.Errorf("empty input: got %v, %v", rec, err)
	}
}

func TestExportJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportJSON(&buf, testMetadata(), testRecording()); err != nil {
		t.Fatal(err)
	}

	var data ExportData
	if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(data.Times) != 2 || len(data.States) != 2 || len(data.Labels) != 12 {
		t.Errorf("unexpected export shape: %d times, %d states, %d labels", len(data.Times), len(data.States), len(data.Labels))
	}
	if data.Run.Name != "test" {
		t.Errorf("expected run name test, got %s", data.Run.Name)
	}
}

func TestNewMetadata(t *testing.T) {
	cfg := sim.DefaultConfig()

	x0 := physics.Pack([]physics.Body{
		{Mass: 2},
		{Mass: 1, Position: r3.Vec{X: 1, Y: 1, Z: 1}, Velocity: r3.Vec{X: 1, Y: 1}},
	})
	traj, err := sim.Integrate(context.Background(), cfg, x0)
	if err != nil {
		t.Fatal(err)
	}

	meta := NewMetadata("classic", cfg, traj, cfg.Samples)
	if meta.Status != StatusComplete || meta.Failure != "" {
		t.Errorf("expected complete run, got %s (%s)", meta.Status, meta.Failure)
	}
	if meta.Reached != 10 || meta.Accepted != traj.Steps() {
		t.Errorf("unexpected reached %v / accepted %d", meta.Reached, meta.Accepted)
	}

	collided := physics.Pack([]physics.Body{{Mass: 2}, {Mass: 1}})
	traj, err = sim.Integrate(context.Background(), cfg, collided)
	if err == nil {
		t.Fatal("expected singularity")
	}
	meta = NewMetadata("collision", cfg, traj, 0)
	if meta.Status != StatusPartial || meta.Failure == "" {
		t.Errorf("expected partial run with failure, got %s (%q)", meta.Status, meta.Failure)
	}
}

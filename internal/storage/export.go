package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/san-kum/gravsim/internal/dynamo"
	"github.com/san-kum/gravsim/internal/physics"
)

// Recording is a sampled trajectory read back from disk.
type Recording struct {
	Labels []string
	Times  []float64
	States []dynamo.State
}

func (r *Recording) SampleCount() int           { return len(r.Times) }
func (r *Recording) TimeAt(i int) float64       { return r.Times[i] }
func (r *Recording) StateAt(i int) dynamo.State { return r.States[i].Clone() }
func (r *Recording) NumBodies() int             { return len(r.Labels) / 6 }

var _ dynamo.Frames = (*Recording)(nil)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteCSV writes one row per frame: time followed by the packed state,
// with a header of per-body labels.
func WriteCSV(w io.Writer, frames dynamo.Frames, bodies int) error {
	cw := csv.NewWriter(w)

	header := append([]string{"time"}, physics.Labels(bodies)...)
	if err := cw.Write(header); err != nil {
		return err
	}

	row := make([]string, len(header))
	for i := 0; i < frames.SampleCount(); i++ {
		x := frames.StateAt(i)
		if len(x) != len(header)-1 {
			return fmt.Errorf("%w: frame %d has %d components, header has %d", dynamo.ErrDimensionMismatch, i, len(x), len(header)-1)
		}
		row[0] = formatFloat(frames.TimeAt(i))
		for j, v := range x {
			row[j+1] = formatFloat(v)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func ReadCSV(r io.Reader) (*Recording, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err == io.EOF {
		return &Recording{}, nil
	}
	if err != nil {
		return nil, err
	}
	if len(header) < 1 || header[0] != "time" || (len(header)-1)%6 != 0 {
		return nil, fmt.Errorf("unexpected states header %v", header)
	}

	rec := &Recording{Labels: header[1:]}
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		x := make(dynamo.State, len(record)-1)
		for j := range x {
			if x[j], err = strconv.ParseFloat(record[j+1], 64); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		}
		rec.Times = append(rec.Times, t)
		rec.States = append(rec.States, x)
	}
	return rec, nil
}

type ExportData struct {
	Run    RunMetadata `json:"run"`
	Labels []string    `json:"labels"`
	Times  []float64   `json:"times"`
	States [][]float64 `json:"states"`
}

// ExportJSON writes meta and every frame as one indented JSON document.
func ExportJSON(w io.Writer, meta RunMetadata, frames dynamo.Frames) error {
	data := ExportData{
		Run:    meta,
		Labels: physics.Labels(len(meta.Masses)),
		Times:  make([]float64, frames.SampleCount()),
		States: make([][]float64, frames.SampleCount()),
	}
	for i := range data.Times {
		data.Times[i] = frames.TimeAt(i)
		data.States[i] = frames.StateAt(i)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

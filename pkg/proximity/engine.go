package proximity

import (
	"log/slog"

	"github.com/unklstewy/ads-proximity/pkg/coordinates"
)

// PassStats summarises one detection pass.
type PassStats struct {
	// Records is the number of records in the pass
	Records int `json:"records"`

	// MissingGeometry counts records excluded from pairing
	MissingGeometry int `json:"missingGeometry"`

	// Pairs is the number of pairs whose separation was computed
	Pairs int `json:"pairs"`

	// Duplicates counts pairs skipped because both records share an identifier
	Duplicates int `json:"duplicates"`

	// Conflicts is the number of conflicting pairs
	Conflicts int `json:"conflicts"`

	// Airborne and Grounded count classifier results
	Airborne int `json:"airborne"`
	Grounded int `json:"grounded"`
}

// Option configures a Detector.
type Option func(*Detector)

// WithClassifier replaces the default classifier.
func WithClassifier(c Classifier) Option {
	return func(d *Detector) { d.classifier = c }
}

// WithSeparation replaces the ECEF separation metric, for example with
// coordinates.FlatSeparationDistance3D.
func WithSeparation(fn coordinates.SeparationFunc) Option {
	return func(d *Detector) {
		if fn != nil {
			d.separation = fn
		}
	}
}

// WithLogger sets the logger used for per-record debug output.
func WithLogger(l *slog.Logger) Option {
	return func(d *Detector) {
		if l != nil {
			d.logger = l
		}
	}
}

// Detector runs proximity passes against a validated threshold table.
// A Detector is immutable after construction and safe for concurrent use
// on distinct record slices.
type Detector struct {
	table      ThresholdTable
	classifier Classifier
	separation coordinates.SeparationFunc
	logger     *slog.Logger
}

// NewDetector validates the table and returns a detector holding a private
// copy of it. The error wraps ErrInvalidThresholdTable.
func NewDetector(table ThresholdTable, opts ...Option) (*Detector, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	d := &Detector{
		table:      table.Clone(),
		classifier: NewClassifier(),
		separation: coordinates.SeparationDistance3D,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Thresholds returns a copy of the detector's table.
func (d *Detector) Thresholds() ThresholdTable {
	return d.table.Clone()
}

// Classifier returns the detector's classifier.
func (d *Detector) Classifier() Classifier {
	return d.classifier
}

// Detect resets and recomputes State, AlertLevel and Conflicts on every
// record in place. Every input record stays in the slice.
func (d *Detector) Detect(records []AircraftRecord) PassStats {
	stats := PassStats{Records: len(records)}

	for i := range records {
		r := &records[i]
		r.reset()
		r.State = d.classifier.ClassifyRecord(r)
		if r.State == Airborne {
			stats.Airborne++
		} else {
			stats.Grounded++
		}
		if !r.HasGeometry() {
			stats.MissingGeometry++
			d.logger.Debug("record excluded from pairing",
				slog.String("identifier", r.Identifier),
				slog.String("callsign", r.Callsign),
				slog.String("reason", ErrMissingGeometry.Error()))
		}
	}

	for i := 0; i < len(records); i++ {
		a := &records[i]
		lat1, lon1, alt1, err := a.Position()
		if err != nil {
			continue
		}
		for j := i + 1; j < len(records); j++ {
			b := &records[j]
			lat2, lon2, alt2, err := b.Position()
			if err != nil {
				continue
			}
			if a.Identifier == b.Identifier {
				stats.Duplicates++
				continue
			}

			distance := d.separation(lat1, lon1, alt1, lat2, lon2, alt2)
			stats.Pairs++

			cat := categorize(a, b)
			level := d.table[cat].Tier(distance)
			if level == AlertNone {
				continue
			}

			recordConflict(a, b, distance, level, cat)
			stats.Conflicts++
		}
	}

	return stats
}

// DetectConflicts validates table and runs one pass over records with the
// default classifier and ECEF separation. An invalid table returns an error
// wrapping ErrInvalidThresholdTable before any record is touched.
func DetectConflicts(records []AircraftRecord, table ThresholdTable) error {
	d, err := NewDetector(table)
	if err != nil {
		return err
	}
	d.Detect(records)
	return nil
}

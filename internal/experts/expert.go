package experts

import (
	"context"
	"fmt"
	"time"

	"consilium/internal/domain/opinion"
	"consilium/pkg/errors"
	"consilium/pkg/logger"
)

// Descriptor identifies a module instance to the registry and to consumers of
// its opinions.
type Descriptor struct {
	Name           string   `json:"name"` // unique within a registry
	Version        string   `json:"version"`
	Description    string   `json:"description"`
	RequiredFields []string `json:"required_fields"` // raw-input keys the module needs
	Dependencies   []string `json:"dependencies"`    // informational only
}

// Producer returns the identity stamped onto this module's opinions.
func (d Descriptor) Producer() opinion.Producer {
	return opinion.Producer{Name: d.Name, Version: d.Version}
}

// Module is the contract every expert analyzer implements. The registry and
// consensus engine never look past this surface.
//
// Infer must not fail under normal operation: any internal computational
// failure is caught inside the module and converted into a fallback opinion,
// so the aggregator never has to special-case a module crash.
type Module interface {
	// Descriptor returns the module's registration identity.
	Descriptor() Descriptor

	// RequiredFields declares the raw-input keys the module needs. Callers
	// may validate presence up front; the module still defends against
	// missing optional context.
	RequiredFields() []string

	// PrepareFeatures transforms raw input into the module's internal
	// feature representation. Pure; fails only when a required field is
	// absent (errors.ErrMissingInput).
	PrepareFeatures(ctx context.Context, raw RawInput) (Features, error)

	// Infer produces an opinion from prepared features. Never nil on the
	// normal path; failures surface as a fallback opinion, not an error.
	Infer(ctx context.Context, features Features) *opinion.Opinion

	// Retrain recalibrates the module from labeled samples. Maintenance
	// path only, never part of a consensus request.
	Retrain(ctx context.Context, data []RawInput, labels []float64) (*RetrainReport, error)
}

// RetrainReport is the structured status of a retrain call.
type RetrainReport struct {
	Module      string    `json:"module"`
	Status      string    `json:"status"` // success | error
	SamplesUsed int       `json:"samples_used"`
	Message     string    `json:"message,omitempty"`
	TrainedAt   time.Time `json:"trained_at"`
}

const (
	RetrainStatusSuccess = "success"
	RetrainStatusError   = "error"
)

// Base carries the descriptor plumbing shared by module implementations.
// Embedding it leaves only PrepareFeatures, Infer and (optionally) Retrain to
// write.
type Base struct {
	desc Descriptor
	log  *logger.Logger
}

// NewBase creates the shared module base.
func NewBase(desc Descriptor) Base {
	return Base{
		desc: desc,
		log:  logger.Get().With("module", desc.Name),
	}
}

// Descriptor returns the module's registration identity.
func (b Base) Descriptor() Descriptor { return b.desc }

// RequiredFields returns the declared required raw-input keys.
func (b Base) RequiredFields() []string { return b.desc.RequiredFields }

// Producer returns the identity stamped onto opinions.
func (b Base) Producer() opinion.Producer { return b.desc.Producer() }

// Log returns the module's child logger.
func (b Base) Log() *logger.Logger { return b.log }

// Retrain is the default no-op hook for modules without a trainable model.
func (b Base) Retrain(ctx context.Context, data []RawInput, labels []float64) (*RetrainReport, error) {
	return nil, errors.Wrapf(errors.ErrNotTrainable, "module %s", b.desc.Name)
}

// MissingRequired returns the module's declared required fields absent from
// the raw input, in declaration order.
func MissingRequired(m Module, raw RawInput) []string {
	var missing []string
	for _, field := range m.RequiredFields() {
		if !raw.Has(field) {
			missing = append(missing, field)
		}
	}
	return missing
}

// SafeInfer runs the full validate -> prepare -> infer pipeline for one
// module. A missing required field surfaces as errors.ErrMissingInput and
// aborts the caller's consensus run; every other failure, including a panic
// inside the module, degrades into a fallback opinion so the module still
// contributes a maximally-uncertain vote.
func SafeInfer(ctx context.Context, m Module, raw RawInput) (op *opinion.Opinion, err error) {
	producer := m.Descriptor().Producer()

	if missing := MissingRequired(m, raw); len(missing) > 0 {
		return nil, errors.Wrapf(errors.ErrMissingInput, "module %s: %v", producer.Name, missing)
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Get().Warnf("module %s panicked during inference: %v", producer.Name, r)
			op = opinion.Fallback(producer, fmt.Sprintf("panic during inference: %v", r))
			err = nil
		}
	}()

	features, ferr := m.PrepareFeatures(ctx, raw)
	if ferr != nil {
		if errors.Is(ferr, errors.ErrMissingInput) {
			return nil, ferr
		}
		return opinion.Fallback(producer, "feature preparation failed: "+ferr.Error()), nil
	}

	op = m.Infer(ctx, features)
	if op == nil {
		op = opinion.Fallback(producer, "module returned no opinion")
	}
	return op, nil
}

package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/quantfold/replay/pkg/errors"
)

// SignalAction is the action a signal instructs the engine to take.
type SignalAction string

const (
	SignalActionBuy  SignalAction = "buy"
	SignalActionSell SignalAction = "sell"
	SignalActionHold SignalAction = "hold"
)

// Signal is a single entry of the signal stream the engine consumes.
// Signals for the same date are processed strictly in arrival order;
// the engine never reorders them by confidence.
type Signal struct {
	Time       time.Time    `csv:"time" yaml:"time" json:"time" validate:"required"`
	Symbol     string       `csv:"symbol" yaml:"symbol" json:"symbol" validate:"required"`
	Action     SignalAction `csv:"action" yaml:"action" json:"action" validate:"required,oneof=buy sell hold"`
	Confidence float64      `csv:"confidence" yaml:"confidence" json:"confidence" validate:"gte=0,lte=1"`
}

// Validate validates the Signal struct.
func (s *Signal) Validate() error {
	validate := validator.New()
	if err := validate.Struct(s); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidSignal, "invalid signal", err)
	}

	return nil
}

package workflow

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrUnknownOption  = errors.New("unknown option")
	ErrOptionType     = errors.New("option has a different type")
	ErrUnknownInput   = errors.New("unknown input binding")
	ErrInvalidInput   = errors.New("input not produced for this timeframe")
	ErrInputType      = errors.New("input payload has a different type")
	ErrUnknownOutput  = errors.New("output not declared by the device")
	ErrDuplicateWrite = errors.New("output already written for this timeframe")
)

// Task is the unit of work of a device. Run is called once per timeframe,
// or repeatedly until EndOfStream for devices without inputs.
type Task interface {
	Init(ic *InitContext) error
	Run(pc *ProcessingContext) error
}

// Stopper is implemented by tasks holding resources to release at end of
// stream.
type Stopper interface {
	Stop() error
}

// ConfigParamRegistry holds the option values of one device.
type ConfigParamRegistry struct {
	specs  map[string]ConfigParamSpec
	values map[string]any
}

func newConfigParamRegistry(specs []ConfigParamSpec, overrides map[string]string) (*ConfigParamRegistry, error) {
	r := &ConfigParamRegistry{
		specs:  make(map[string]ConfigParamSpec, len(specs)),
		values: make(map[string]any, len(specs)),
	}
	for _, spec := range specs {
		r.specs[spec.Name] = spec
		r.values[spec.Name] = spec.Default
	}
	for name, raw := range overrides {
		spec, ok := r.specs[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownOption, name)
		}
		value, err := parseOption(spec.Type, raw)
		if err != nil {
			return nil, fmt.Errorf("option %s: %w", name, err)
		}
		r.values[name] = value
	}
	return r, nil
}

func parseOption(t VariantType, raw string) (any, error) {
	switch t {
	case VariantString:
		return raw, nil
	case VariantBool:
		return strconv.ParseBool(raw)
	case VariantInt:
		return strconv.Atoi(raw)
	case VariantFloat:
		return strconv.ParseFloat(raw, 64)
	}
	return nil, fmt.Errorf("unsupported option type %v", t)
}

// Option returns the value of name converted to T.
func Option[T any](r *ConfigParamRegistry, name string) (T, error) {
	var zero T
	value, ok := r.values[name]
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrUnknownOption, name)
	}
	typed, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s is %T", ErrOptionType, name, value)
	}
	return typed, nil
}

func (r *ConfigParamRegistry) String(name string) (string, error) {
	return Option[string](r, name)
}

func (r *ConfigParamRegistry) Bool(name string) (bool, error) {
	return Option[bool](r, name)
}

func (r *ConfigParamRegistry) Int(name string) (int, error) {
	return Option[int](r, name)
}

func (r *ConfigParamRegistry) Float(name string) (float64, error) {
	return Option[float64](r, name)
}

// IsSet reports whether the option exists.
func (r *ConfigParamRegistry) IsSet(name string) bool {
	_, ok := r.values[name]
	return ok
}

type InitContext struct {
	name    string
	options *ConfigParamRegistry
}

func (ic *InitContext) Name() string {
	return ic.name
}

func (ic *InitContext) Options() *ConfigParamRegistry {
	return ic.options
}

// InputRecord holds the payloads of one timeframe by binding. A binding
// whose producer did not write for the timeframe is invalid.
type InputRecord struct {
	spec     *DataProcessorSpec
	payloads map[string]any
}

func (in *InputRecord) IsValid(binding string) bool {
	_, ok := in.payloads[binding]
	return ok
}

// Get returns the payload of binding converted to T.
func Get[T any](in *InputRecord, binding string) (T, error) {
	var zero T
	if _, ok := in.spec.Input(binding); !ok {
		return zero, fmt.Errorf("%w: %s", ErrUnknownInput, binding)
	}
	payload, ok := in.payloads[binding]
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrInvalidInput, binding)
	}
	typed, ok := payload.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s carries %T", ErrInputType, binding, payload)
	}
	return typed, nil
}

type message struct {
	output  OutputSpec
	payload any
}

// DataAllocator collects the outputs of one Run call.
type DataAllocator struct {
	spec     *DataProcessorSpec
	messages []message
}

// Snapshot publishes payload on output. The payload must not be modified
// afterwards.
func (a *DataAllocator) Snapshot(output OutputSpec, payload any) error {
	if !a.spec.HasOutput(output) {
		return fmt.Errorf("%w: %s on %s", ErrUnknownOutput, output, a.spec.Name)
	}
	for _, m := range a.messages {
		if m.output.key() == output.key() {
			return fmt.Errorf("%w: %s", ErrDuplicateWrite, output)
		}
	}
	a.messages = append(a.messages, message{output: output.key(), payload: payload})
	return nil
}

type ProcessingContext struct {
	timeslice   uint64
	inputs      *InputRecord
	outputs     *DataAllocator
	endOfStream bool
}

func (pc *ProcessingContext) Inputs() *InputRecord {
	return pc.inputs
}

func (pc *ProcessingContext) Outputs() *DataAllocator {
	return pc.outputs
}

// Timeslice is the index of the timeframe being processed.
func (pc *ProcessingContext) Timeslice() uint64 {
	return pc.timeslice
}

// EndOfStream stops the device after the current call. Outputs written
// during the call are still delivered.
func (pc *ProcessingContext) EndOfStream() {
	pc.endOfStream = true
}

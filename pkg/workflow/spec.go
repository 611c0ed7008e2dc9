// Package workflow is a small in-process dataflow host: devices declare
// typed inputs and outputs, exchange payloads per timeframe and are run
// concurrently until end of stream.
package workflow

import "fmt"

type Lifetime int

const (
	LifetimeTimeframe Lifetime = iota
	LifetimeCondition
	LifetimeSporadic
)

// InputSpec subscribes a device to the data matching origin, description
// and subspec. Binding is the name used to retrieve the payload.
type InputSpec struct {
	Binding     string
	Origin      string
	Description string
	SubSpec     uint32
	Lifetime    Lifetime
}

func (i InputSpec) String() string {
	return fmt.Sprintf("%s:%s/%s/%d", i.Binding, i.Origin, i.Description, i.SubSpec)
}

// OutputSpec declares data published by a device.
type OutputSpec struct {
	Origin      string
	Description string
	SubSpec     uint32
	Lifetime    Lifetime
}

func (o OutputSpec) String() string {
	return fmt.Sprintf("%s/%s/%d", o.Origin, o.Description, o.SubSpec)
}

// Matches reports whether the output feeds input.
func (o OutputSpec) Matches(input InputSpec) bool {
	return o.Origin == input.Origin && o.Description == input.Description && o.SubSpec == input.SubSpec
}

func (o OutputSpec) key() OutputSpec {
	o.Lifetime = LifetimeTimeframe
	return o
}

type VariantType int

const (
	VariantString VariantType = iota
	VariantBool
	VariantInt
	VariantFloat
)

func (v VariantType) String() string {
	switch v {
	case VariantString:
		return "string"
	case VariantBool:
		return "bool"
	case VariantInt:
		return "int"
	case VariantFloat:
		return "float"
	}
	return "unknown"
}

// ConfigParamSpec declares a device option and its default.
type ConfigParamSpec struct {
	Name    string
	Type    VariantType
	Default any
	Help    string
}

// AlgorithmSpec wraps the task run by a device.
type AlgorithmSpec struct {
	task Task
}

func AdaptFromTask(task Task) AlgorithmSpec {
	return AlgorithmSpec{task: task}
}

func (a AlgorithmSpec) Task() Task {
	return a.task
}

type DataProcessorSpec struct {
	Name      string
	Inputs    []InputSpec
	Outputs   []OutputSpec
	Algorithm AlgorithmSpec
	Options   []ConfigParamSpec
}

// Input returns the input with binding.
func (s DataProcessorSpec) Input(binding string) (InputSpec, bool) {
	for _, in := range s.Inputs {
		if in.Binding == binding {
			return in, true
		}
	}
	return InputSpec{}, false
}

func (s DataProcessorSpec) HasOutput(out OutputSpec) bool {
	for _, o := range s.Outputs {
		if o.key() == out.key() {
			return true
		}
	}
	return false
}

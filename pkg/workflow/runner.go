package workflow

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/jmbenlloch/pixreco_go/pkg/logging"
)

var ErrInvalidWorkflow = errors.New("invalid workflow")

// DefaultQueueSize is the number of messages buffered per device.
const DefaultQueueSize = 8

type envelope struct {
	timeslice uint64
	binding   string
	payload   any
	valid     bool
	eos       bool
}

type route struct {
	consumer int
	binding  string
}

type device struct {
	spec       *DataProcessorSpec
	options    *ConfigParamRegistry
	inbox      chan envelope
	routes     map[OutputSpec][]route
	consumers  []int
	nProducers int
}

// Runner executes a set of devices, one goroutine per device.
type Runner struct {
	logger    logging.Logger
	overrides map[string]map[string]string
	QueueSize int
}

func NewRunner(logger logging.Logger) *Runner {
	return &Runner{
		logger:    logger,
		overrides: make(map[string]map[string]string),
		QueueSize: DefaultQueueSize,
	}
}

// SetOption overrides an option of a device. The value is parsed with the
// type declared by the option.
func (r *Runner) SetOption(deviceName, name, value string) {
	if r.overrides[deviceName] == nil {
		r.overrides[deviceName] = make(map[string]string)
	}
	r.overrides[deviceName][name] = value
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidWorkflow, fmt.Sprintf(format, args...))
}

func (r *Runner) build(specs []DataProcessorSpec) ([]*device, error) {
	devices := make([]*device, len(specs))
	names := make(map[string]int, len(specs))
	producers := make(map[OutputSpec]int)

	for i := range specs {
		spec := &specs[i]
		if spec.Name == "" {
			return nil, invalid("device %d has no name", i)
		}
		if _, ok := names[spec.Name]; ok {
			return nil, invalid("duplicate device %s", spec.Name)
		}
		names[spec.Name] = i
		if spec.Algorithm.Task() == nil {
			return nil, invalid("device %s has no task", spec.Name)
		}
		for _, out := range spec.Outputs {
			if p, ok := producers[out.key()]; ok {
				return nil, invalid("%s produced by both %s and %s", out, specs[p].Name, spec.Name)
			}
			producers[out.key()] = i
		}
		options, err := newConfigParamRegistry(spec.Options, r.overrides[spec.Name])
		if err != nil {
			return nil, fmt.Errorf("device %s: %w", spec.Name, err)
		}
		devices[i] = &device{
			spec:    spec,
			options: options,
			inbox:   make(chan envelope, max(1, r.QueueSize)),
			routes:  make(map[OutputSpec][]route),
		}
	}
	for name := range r.overrides {
		if _, ok := names[name]; !ok {
			return nil, invalid("options set for unknown device %s", name)
		}
	}

	for i, d := range devices {
		bindings := make(map[string]bool)
		for _, in := range d.spec.Inputs {
			if bindings[in.Binding] {
				return nil, invalid("device %s binds %s twice", d.spec.Name, in.Binding)
			}
			bindings[in.Binding] = true

			var p int
			found := false
			for out, idx := range producers {
				if out.Matches(in) {
					p, found = idx, true
					break
				}
			}
			if !found {
				return nil, invalid("no producer for input %s of %s", in, d.spec.Name)
			}
			key := OutputSpec{Origin: in.Origin, Description: in.Description, SubSpec: in.SubSpec}
			producer := devices[p]
			producer.routes[key] = append(producer.routes[key], route{consumer: i, binding: in.Binding})
			if !slices.Contains(producer.consumers, i) {
				producer.consumers = append(producer.consumers, i)
				d.nProducers++
			}
		}
	}

	if err := checkAcyclic(devices); err != nil {
		return nil, err
	}
	return devices, nil
}

func checkAcyclic(devices []*device) error {
	inDegree := make([]int, len(devices))
	for _, d := range devices {
		for _, c := range d.consumers {
			inDegree[c]++
		}
	}
	var ready []int
	for i, n := range inDegree {
		if n == 0 {
			ready = append(ready, i)
		}
	}
	visited := 0
	for len(ready) > 0 {
		i := ready[len(ready)-1]
		ready = ready[:len(ready)-1]
		visited++
		for _, c := range devices[i].consumers {
			inDegree[c]--
			if inDegree[c] == 0 {
				ready = append(ready, c)
			}
		}
	}
	if visited != len(devices) {
		return invalid("the devices form a cycle")
	}
	return nil
}

// Run validates the workflow and runs it until every device has reached
// end of stream or one of them fails.
func (r *Runner) Run(ctx context.Context, specs []DataProcessorSpec) error {
	devices, err := r.build(specs)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, d := range devices {
		g.Go(func() (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					err = fmt.Errorf("device %s panicked: %v", d.spec.Name, rec)
				}
			}()
			return r.runDevice(gctx, d, devices)
		})
	}
	return g.Wait()
}

func (r *Runner) runDevice(ctx context.Context, d *device, devices []*device) error {
	task := d.spec.Algorithm.Task()
	if err := task.Init(&InitContext{name: d.spec.Name, options: d.options}); err != nil {
		return fmt.Errorf("device %s init: %w", d.spec.Name, err)
	}

	var processed int
	var runErr error
	if len(d.spec.Inputs) == 0 {
		processed, runErr = r.runSource(ctx, d, task, devices)
	} else {
		processed, runErr = r.runConsumer(ctx, d, task, devices)
	}
	var stopErr error
	if s, ok := task.(Stopper); ok {
		stopErr = s.Stop()
	}
	if err := errors.Join(runErr, stopErr); err != nil {
		return fmt.Errorf("device %s: %w", d.spec.Name, err)
	}
	r.logger.Info(fmt.Sprintf("Device %s processed %d timeframes", d.spec.Name, processed), "workflow")

	for _, c := range d.consumers {
		select {
		case devices[c].inbox <- envelope{eos: true}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (r *Runner) runSource(ctx context.Context, d *device, task Task, devices []*device) (int, error) {
	for ts := uint64(0); ; ts++ {
		if err := ctx.Err(); err != nil {
			return int(ts), err
		}
		pc := &ProcessingContext{
			timeslice: ts,
			inputs:    &InputRecord{spec: d.spec},
			outputs:   &DataAllocator{spec: d.spec},
		}
		if err := task.Run(pc); err != nil {
			return int(ts), err
		}
		if err := dispatch(ctx, d, devices, ts, pc.outputs.messages); err != nil {
			return int(ts), err
		}
		if pc.endOfStream {
			return int(ts) + 1, nil
		}
	}
}

type slot struct {
	payloads map[string]any
	received int
}

func (r *Runner) runConsumer(ctx context.Context, d *device, task Task, devices []*device) (int, error) {
	pending := make(map[uint64]*slot)
	finished, processed := 0, 0
	stopped := false

	for finished < d.nProducers {
		var env envelope
		select {
		case env = <-d.inbox:
		case <-ctx.Done():
			return processed, ctx.Err()
		}
		if env.eos {
			finished++
			continue
		}

		s, ok := pending[env.timeslice]
		if !ok {
			s = &slot{payloads: make(map[string]any)}
			pending[env.timeslice] = s
		}
		s.received++
		if env.valid {
			s.payloads[env.binding] = env.payload
		}
		if s.received < len(d.spec.Inputs) {
			continue
		}
		delete(pending, env.timeslice)
		if stopped {
			continue
		}

		pc := &ProcessingContext{
			timeslice: env.timeslice,
			inputs:    &InputRecord{spec: d.spec, payloads: s.payloads},
			outputs:   &DataAllocator{spec: d.spec},
		}
		if err := task.Run(pc); err != nil {
			return processed, fmt.Errorf("timeframe %d: %w", env.timeslice, err)
		}
		processed++
		if err := dispatch(ctx, d, devices, env.timeslice, pc.outputs.messages); err != nil {
			return processed, err
		}
		stopped = pc.endOfStream
	}

	if len(pending) > 0 {
		r.logger.Error(fmt.Sprintf("Device %s dropped %d incomplete timeframes", d.spec.Name, len(pending)))
	}
	return processed, nil
}

// dispatch sends every declared output to its consumers, marking the
// outputs not written during the call as invalid.
func dispatch(ctx context.Context, d *device, devices []*device, ts uint64, messages []message) error {
	written := make(map[OutputSpec]any, len(messages))
	for _, m := range messages {
		written[m.output] = m.payload
	}
	for _, out := range d.spec.Outputs {
		key := out.key()
		payload, valid := written[key]
		for _, rt := range d.routes[key] {
			env := envelope{timeslice: ts, binding: rt.binding, payload: payload, valid: valid}
			select {
			case devices[rt.consumer].inbox <- env:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

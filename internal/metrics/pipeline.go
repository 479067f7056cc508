package metrics

import (
	"time"

	"promptassist/internal/augment"
)

// Pipeline holds the expander's metrics.
type Pipeline struct {
	registry *Registry

	KeyEvents        *Counter
	SnippetTriggers  *Counter
	PromptTriggers   *Counter
	SnippetsExpanded *Counter
	Rejected         *Counter
	Dropped          *Counter

	AugmentLatency *Histogram

	succeeded *Counter
	failed    map[augment.FailureKind]*Counter
}

// failureKinds are the kinds counted separately; anything else is "other".
var failureKinds = []augment.FailureKind{
	augment.KindTransport,
	augment.KindUpstreamStatus,
	augment.KindEmptyResult,
	augment.KindConfiguration,
	augment.KindNone,
}

// NewPipeline registers the expander's metrics on registry. A nil
// registry gets a fresh one in the "promptassist" namespace.
func NewPipeline(registry *Registry) *Pipeline {
	if registry == nil {
		registry = NewRegistry("promptassist")
	}

	p := &Pipeline{
		registry: registry,
		KeyEvents: registry.Counter("key_events_total",
			"Key events received from the keyboard hook", nil),
		SnippetTriggers: registry.Counter("triggers_total",
			"Recognized triggers by kind", Labels{"kind": "snippet"}),
		PromptTriggers: registry.Counter("triggers_total",
			"Recognized triggers by kind", Labels{"kind": "augmentation"}),
		SnippetsExpanded: registry.Counter("snippets_expanded_total",
			"Snippet commands replaced with their text", nil),
		Rejected: registry.Counter("augmentations_rejected_total",
			"Augmentation triggers refused because a request was in flight", nil),
		Dropped: registry.Counter("actions_dropped_total",
			"Triggers dropped because the dispatcher queue was full", nil),
		AugmentLatency: registry.Histogram("augmentation_duration_seconds",
			"Time from request start to completion, retries included", nil, LatencyBuckets),
		succeeded: registry.Counter("augmentations_total",
			"Completed augmentation requests by result", Labels{"result": "success"}),
		failed: make(map[augment.FailureKind]*Counter, len(failureKinds)),
	}
	for _, k := range failureKinds {
		name := k.String()
		if k == augment.KindNone {
			name = "other"
		}
		p.failed[k] = registry.Counter("augmentations_total",
			"Completed augmentation requests by result", Labels{"result": name})
	}
	return p
}

// Registry returns the registry the metrics live on.
func (p *Pipeline) Registry() *Registry {
	return p.registry
}

// ObserveAugmentation records one completed request.
func (p *Pipeline) ObserveAugmentation(elapsed time.Duration, err error) {
	p.AugmentLatency.ObserveDuration(elapsed)
	if err == nil {
		p.succeeded.Inc()
		return
	}
	c, ok := p.failed[augment.KindOf(err)]
	if !ok {
		c = p.failed[augment.KindNone]
	}
	c.Inc()
}

// Succeeded returns the number of successful augmentations.
func (p *Pipeline) Succeeded() uint64 {
	return p.succeeded.Value()
}

// Failed returns the number of failed augmentations of kind k.
func (p *Pipeline) Failed(k augment.FailureKind) uint64 {
	if c, ok := p.failed[k]; ok {
		return c.Value()
	}
	return 0
}

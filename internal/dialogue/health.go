package dialogue

import (
	"fmt"
	"time"
)

// Status classifies the overall health of the window at one point in time.
type Status string

const (
	StatusWarmingUp       Status = "warming_up"
	StatusHealthyFocused  Status = "healthy_focused"
	StatusDriftDetected   Status = "drift_detected"
	StatusFragmented      Status = "fragmented"
	StatusScattering      Status = "scattering"
	StatusEvasionDetected Status = "evasion_detected"
	StatusModerate        Status = "moderate"
)

type AlertKind string

const (
	AlertDrift         AlertKind = "drift"
	AlertFragmentation AlertKind = "fragmentation"
	AlertCoherence     AlertKind = "coherence"
	AlertQAImbalance   AlertKind = "qa_imbalance"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// Alert is a typed signal that one threshold was violated. Alerts live only
// inside the snapshot that produced them.
type Alert struct {
	Kind     AlertKind `json:"kind"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
}

// Snapshot is the complete health evaluation result for one point in the
// conversation. Created fresh on every ingestion, never mutated.
type Snapshot struct {
	Status      Status    `json:"status"`
	Context     Context   `json:"context"`
	Metrics     Metrics   `json:"metrics"`
	Alerts      []Alert   `json:"alerts"`
	TurnCount   int       `json:"turn_count"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Evaluator derives status and alerts from metrics under context-specific
// thresholds. It carries no state between snapshots: the only state that
// persists is the window the metrics came from.
type Evaluator struct {
	contexts   map[Context]ContextConfig
	qaLowWater float64
	minTurns   int
}

const defaultQALowWater = 0.3

func NewEvaluator(contexts map[Context]ContextConfig, qaLowWater float64) *Evaluator {
	if contexts == nil {
		contexts = DefaultContextConfigs()
	}
	if qaLowWater <= 0 {
		qaLowWater = defaultQALowWater
	}
	return &Evaluator{contexts: contexts, qaLowWater: qaLowWater, minTurns: 3}
}

func (e *Evaluator) ContextConfig(c Context) ContextConfig {
	if cc, ok := e.contexts[c]; ok {
		return cc
	}
	return e.contexts[ContextGeneral]
}

// Evaluate produces a fresh snapshot. Multiple alerts may coexist; the
// primary status is the most severe single condition in the fixed order
// drift > fragmentation > scattering > evasion > healthy > moderate.
func (e *Evaluator) Evaluate(turnCount int, context Context, m Metrics, at time.Time) Snapshot {
	snap := Snapshot{
		Context:     context,
		Metrics:     m,
		TurnCount:   turnCount,
		GeneratedAt: at,
	}
	if turnCount < e.minTurns {
		snap.Status = StatusWarmingUp
		return snap
	}

	cc := e.ContextConfig(context)

	if m.Drift != nil && *m.Drift > cc.MaxDrift {
		snap.Alerts = append(snap.Alerts, Alert{
			Kind:     AlertDrift,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("response drifted %.2f from the question (limit %.2f)", *m.Drift, cc.MaxDrift),
		})
	}
	if m.Fragmented {
		snap.Alerts = append(snap.Alerts, Alert{
			Kind:     AlertFragmentation,
			Severity: SeverityWarning,
			Message:  "exchange has become rapid and shallow",
		})
	}
	if m.Coherence != nil && *m.Coherence < cc.MinContinuity {
		snap.Alerts = append(snap.Alerts, Alert{
			Kind:     AlertCoherence,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("topic continuity %.2f is below %.2f", *m.Coherence, cc.MinContinuity),
		})
	}
	if context == ContextAccountability && m.QARatio != nil && *m.QARatio < e.qaLowWater {
		snap.Alerts = append(snap.Alerts, Alert{
			Kind:     AlertQAImbalance,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("direct answers cover %.2f of questions asked (low-water %.2f)", *m.QARatio, e.qaLowWater),
		})
	}

	snap.Status = e.primaryStatus(snap.Alerts, cc, m)
	return snap
}

func (e *Evaluator) primaryStatus(alerts []Alert, cc ContextConfig, m Metrics) Status {
	byKind := make(map[AlertKind]bool, len(alerts))
	for _, a := range alerts {
		byKind[a.Kind] = true
	}
	switch {
	case byKind[AlertDrift]:
		return StatusDriftDetected
	case byKind[AlertFragmentation]:
		return StatusFragmented
	case byKind[AlertCoherence]:
		return StatusScattering
	case byKind[AlertQAImbalance]:
		return StatusEvasionDetected
	}
	if m.Drift != nil && *m.Drift <= cc.MaxDrift && m.Coherence != nil && *m.Coherence >= cc.MinContinuity {
		return StatusHealthyFocused
	}
	return StatusModerate
}

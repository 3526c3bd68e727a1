package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/rshade/streamctl/internal/engine"
)

// StatusHandler returns a fresh pipeline snapshot. Discovery failures map
// to 502: the control plane, not this process, is the broken hop.
func StatusHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, err := eng.Status(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("Status query failed")
			http.Error(w, "control plane unavailable", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rep)
	}
}

// PipelineHandler enqueues a lifecycle verb. The operation runs
// asynchronously on the engine goroutine; 202 means accepted, not done.
func PipelineHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		verb, ok := engine.ParseVerb(chi.URLParam(r, "verb"))
		if !ok {
			http.Error(w, "verb must be one of start, stop, restart", http.StatusBadRequest)
			return
		}

		var req struct {
			Reason string `json:"reason"`
		}
		if r.Body != nil {
			// A missing or empty body is fine; reason is optional.
			json.NewDecoder(r.Body).Decode(&req)
		}
		reason := req.Reason
		if reason == "" {
			reason = "manual request"
		}

		if !eng.Enqueue(engine.Intent{Verb: verb, Source: "api", Reason: reason}) {
			http.Error(w, "operation queue full", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		fmt.Fprintf(w, "%s accepted\n", verb)
	}
}

// snsEnvelope is the subset of the SNS notification wrapper we care about.
type snsEnvelope struct {
	Type         string `json:"Type"`
	Message      string `json:"Message"`
	SubscribeURL string `json:"SubscribeURL"`
}

// alarmMessage is the inner CloudWatch alarm payload carried in Message.
type alarmMessage struct {
	AlarmName     string `json:"AlarmName"`
	NewStateValue string `json:"NewStateValue"` // ALARM, OK, INSUFFICIENT_DATA
}

// CloudWatchHandler accepts SNS-wrapped CloudWatch alarm notifications and
// restarts the pipeline when an alarm fires. Wired to the inspection
// fleet's health alarms so a wedged appliance pool recovers unattended.
func CloudWatchHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var env snsEnvelope
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			http.Error(w, "invalid JSON payload", http.StatusBadRequest)
			return
		}

		if env.Type == "SubscriptionConfirmation" {
			// Confirmation is a one-time manual step; surface the URL.
			log.Info().Str("subscribeUrl", env.SubscribeURL).Msg("SNS subscription confirmation received, visit SubscribeURL to confirm")
			w.WriteHeader(http.StatusOK)
			return
		}

		var alarm alarmMessage
		if err := json.Unmarshal([]byte(env.Message), &alarm); err != nil {
			http.Error(w, "message is not a CloudWatch alarm payload", http.StatusBadRequest)
			return
		}
		if alarm.NewStateValue != "ALARM" {
			// OK / INSUFFICIENT_DATA transitions need no action.
			w.WriteHeader(http.StatusOK)
			return
		}

		intent := engine.Intent{
			Verb:   engine.VerbRestart,
			Source: "cloudwatch",
			Reason: fmt.Sprintf("alarm %s fired", alarm.AlarmName),
		}
		if !eng.Enqueue(intent) {
			http.Error(w, "operation queue full", http.StatusServiceUnavailable)
			return
		}
		log.Info().Str("alarm", alarm.AlarmName).Msg("Restart queued from CloudWatch alarm")
		w.WriteHeader(http.StatusAccepted)
	}
}

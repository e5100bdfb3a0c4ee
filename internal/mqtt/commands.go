package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/ekran/internal/apperr"
	"github.com/Nixie-Tech-LLC/ekran/internal/model"
	"github.com/Nixie-Tech-LLC/ekran/internal/orchestrator"
)

// Controller is the subset of the orchestrator reachable over MQTT.
type Controller interface {
	PlayVideo(ctx context.Context, selection []string) (orchestrator.Result, error)
	PlayCamera(ctx context.Context, name string) (orchestrator.Result, error)
	PlaySlideshow(ctx context.Context, images []string, interval time.Duration) (orchestrator.Result, error)
	Announce(ctx context.Context, text string, duration time.Duration) (orchestrator.Result, error)
	Stop(ctx context.Context) (orchestrator.Result, error)
	Resume(ctx context.Context) (orchestrator.Result, error)
}

// CommandMessage is the payload accepted on the command topic. Interval and
// Duration are in seconds.
type CommandMessage struct {
	ID       string   `json:"id,omitempty"`
	Command  string   `json:"command"`
	Videos   []string `json:"videos,omitempty"`
	Name     string   `json:"name,omitempty"`
	Images   []string `json:"images,omitempty"`
	Interval float64  `json:"interval,omitempty"`
	Message  string   `json:"message,omitempty"`
	Duration float64  `json:"duration,omitempty"`
}

// CommandReply is published on the response topic. ID echoes the
// CommandMessage ID so senders can correlate.
type CommandReply struct {
	ID        string               `json:"id,omitempty"`
	Command   string               `json:"command"`
	OK        bool                 `json:"ok"`
	RequestID string               `json:"request_id,omitempty"`
	Result    *orchestrator.Result `json:"result,omitempty"`
	Kind      string               `json:"kind,omitempty"`
	Error     string               `json:"error,omitempty"`
}

// Dispatch runs msg against ctrl.
func Dispatch(ctx context.Context, ctrl Controller, msg CommandMessage) (orchestrator.Result, error) {
	switch msg.Command {
	case orchestrator.CmdPlayVideo:
		return ctrl.PlayVideo(ctx, msg.Videos)
	case orchestrator.CmdPlayCamera:
		return ctrl.PlayCamera(ctx, msg.Name)
	case orchestrator.CmdPlaySlideshow:
		return ctrl.PlaySlideshow(ctx, msg.Images, model.Seconds(msg.Interval))
	case orchestrator.CmdAnnounce:
		return ctrl.Announce(ctx, msg.Message, model.Seconds(msg.Duration))
	case orchestrator.CmdStop:
		return ctrl.Stop(ctx)
	case orchestrator.CmdResume:
		return ctrl.Resume(ctx)
	default:
		return orchestrator.Result{}, apperr.New(apperr.InvalidArgument, "unknown command %q", msg.Command)
	}
}

func (b *Bridge) handleCommand(payload []byte) {
	var msg CommandMessage
	reply := CommandReply{}
	if err := json.Unmarshal(payload, &msg); err != nil {
		reply.Kind = string(apperr.InvalidArgument)
		reply.Error = "malformed command: " + err.Error()
		b.reply(reply)
		return
	}
	reply.ID = msg.ID
	reply.Command = msg.Command

	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.CommandTimeout)
	defer cancel()

	res, err := Dispatch(ctx, b.ctrl, msg)
	if err != nil {
		reply.Kind = string(apperr.KindOf(err))
		reply.Error = err.Error()
		log.Warn().Err(err).Str("command", msg.Command).Msg("MQTT command failed")
	} else {
		reply.OK = true
		reply.RequestID = res.RequestID
		reply.Result = &res
	}
	b.reply(reply)
}

func (b *Bridge) reply(r CommandReply) {
	payload, err := json.Marshal(r)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal MQTT reply")
		return
	}
	if err := b.publish(b.cfg.ResponseTopic(), payload); err != nil {
		log.Warn().Err(err).Msg("failed to publish MQTT reply")
	}
}

package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Tiliavir/showrun/internal/automation"
)

// ActionSender runs ontime-action outputs against the engine itself.
type ActionSender struct {
	Engine *Engine
}

func (s ActionSender) Send(ctx context.Context, p automation.Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch p.Action {
	case automation.ActionStart:
		return s.Engine.Start()
	case automation.ActionPause:
		return s.Engine.Pause()
	case automation.ActionStop:
		return s.Engine.Stop()
	case automation.ActionRoll:
		return s.Engine.Roll()
	case automation.ActionLoad:
		id := strings.TrimSpace(p.Value)
		if id == "" {
			return fmt.Errorf("load action needs an event id")
		}
		return s.Engine.Load(id)
	case automation.ActionAddTime:
		ms, err := ParseAddTime(p.Value)
		if err != nil {
			return err
		}
		return s.Engine.AddTime(ms)
	default:
		return fmt.Errorf("unknown action %q", p.Action)
	}
}

// ParseAddTime reads a time adjustment either as plain milliseconds
// ("-30000") or as a Go duration ("1m30s").
func ParseAddTime(v string) (int64, error) {
	v = strings.TrimSpace(v)
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return ms, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid time value %q", v)
	}
	return d.Milliseconds(), nil
}

// Package dispatch: reply keyboard composition for /start.
package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/BTreeMap/StreakBot/internal/models"
)

// composeKeyboard builds the reply keyboard: the configured layout (or the
// default three-button arrangement), followed by any custom reply labels
// not already placed, two per row, and the admin row for administrators.
func (d *Dispatcher) composeKeyboard(ctx context.Context, actorID string) ([][]string, error) {
	urgeLabel, err := d.store.GetConfig(ctx, models.ConfigKeyUrgeLabel, DefaultUrgeLabel)
	if err != nil {
		return nil, err
	}
	streakLabel, err := d.store.GetConfig(ctx, models.ConfigKeyStreakLabel, DefaultStreakLabel)
	if err != nil {
		return nil, err
	}
	channelLabel, err := d.store.GetConfig(ctx, models.ConfigKeyChannelLabel, DefaultChannelLabel)
	if err != nil {
		return nil, err
	}

	layout := [][]string{{urgeLabel, streakLabel}, {channelLabel}}
	raw, err := d.store.GetConfig(ctx, models.ConfigKeyLayout, "")
	if err != nil {
		return nil, err
	}
	if raw != "" {
		var configured [][]string
		if err := json.Unmarshal([]byte(raw), &configured); err != nil {
			slog.Warn("composeKeyboard ignoring malformed layout config", "error", err)
		} else if len(configured) > 0 {
			layout = configured
		}
	}

	placed := make(map[string]struct{})
	for _, row := range layout {
		for _, label := range row {
			placed[label] = struct{}{}
		}
	}

	replies, err := d.store.ListCustomReplies(ctx)
	if err != nil {
		return nil, err
	}
	var row []string
	for _, r := range replies {
		if _, ok := placed[r.Label]; ok {
			continue
		}
		row = append(row, r.Label)
		if len(row) == 2 {
			layout = append(layout, row)
			row = nil
		}
	}
	if len(row) > 0 {
		layout = append(layout, row)
	}

	if d.IsAdmin(actorID) {
		layout = append(layout, []string{AdminPanelLabel})
	}
	return layout, nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/log"
	"github.com/zenibako/resolume-golang/resolume"
)

// runConsole prompts for actions until the user quits or ctx is done
func runConsole(ctx context.Context, tracker *resolume.Tracker) error {
	for {
		var choice string
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[string]().
					Title(fmt.Sprintf("Deck %d, %d layers, %d columns",
						tracker.CurrentDeck(), tracker.LayerCount(), tracker.ColumnCount())).
					Options(
						huh.NewOption("Show status", "status"),
						huh.NewOption("Print composition tree", "tree"),
						huh.NewOption("Query an address", "query"),
						huh.NewOption("Trigger a clip", "trigger"),
						huh.NewOption("Next deck", "next"),
						huh.NewOption("Previous deck", "previous"),
						huh.NewOption("Clear tracked state", "clear"),
						huh.NewOption("Quit", "quit"),
					).
					Value(&choice),
			),
		)

		if err := form.RunWithContext(ctx); err != nil {
			if errors.Is(err, huh.ErrUserAborted) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to get user input: %w", err)
		}

		var err error
		switch choice {
		case "status":
			printStatus(tracker)
		case "tree":
			err = tracker.Print(os.Stdout)
		case "query":
			err = promptQuery(ctx, tracker)
		case "trigger":
			err = promptTrigger(ctx, tracker)
		case "next":
			err = tracker.NextDeck()
		case "previous":
			err = tracker.PreviousDeck()
		case "clear":
			tracker.Clear()
			log.Info("Cleared tracked state")
		case "quit":
			return nil
		default:
			return fmt.Errorf("unexpected choice: %s", choice)
		}
		if err != nil {
			log.Error("Action failed", "action", choice, "error", err)
		}
	}
}

func printStatus(tracker *resolume.Tracker) {
	layer, clip := tracker.SelectedClip()
	log.Info("Status",
		"deck", tracker.CurrentDeck(),
		"layers", tracker.LayerCount(),
		"columns", tracker.ColumnCount(),
		"selectedLayer", tracker.SelectedLayer(),
		"selectedColumn", tracker.SelectedColumn(),
		"connectedColumn", tracker.ConnectedColumn(),
		"selectedClip", fmt.Sprintf("%d/%d", layer, clip),
		"tempoPlaying", tracker.TempoControllerPlaying(),
		"pendingQueries", tracker.PendingQueries(),
	)
	for _, e := range tracker.SelectedEffects() {
		log.Info("Selected effect", "id", e.ID, "name", e.Name, "properties", len(e.Properties))
	}
}

func promptQuery(ctx context.Context, tracker *resolume.Tracker) error {
	var address string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("OSC address").
				Placeholder("/composition/layers/1/clips/1/name").
				Validate(func(s string) error {
					if !strings.HasPrefix(s, "/") {
						return errors.New("address must start with /")
					}
					return nil
				}).
				Value(&address),
		),
	)
	if err := form.RunWithContext(ctx); err != nil {
		return err
	}

	reply, err := tracker.Query(ctx, address, 0)
	if err != nil {
		return err
	}
	log.Info("Reply", "address", address, "floats", reply.Floats, "ints", reply.Ints, "strings", reply.Strings)
	return nil
}

func promptTrigger(ctx context.Context, tracker *resolume.Tracker) error {
	var layerText, columnText string
	positive := func(s string) error {
		if n, err := strconv.Atoi(s); err != nil || n < 1 {
			return errors.New("enter a number from 1")
		}
		return nil
	}
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Layer").Validate(positive).Value(&layerText),
			huh.NewInput().Title("Column").Validate(positive).Value(&columnText),
		),
	)
	if err := form.RunWithContext(ctx); err != nil {
		return err
	}

	layer, _ := strconv.Atoi(layerText)
	column, _ := strconv.Atoi(columnText)
	if !tracker.DoesClipExist(column, layer) && !tracker.QueryClipExists(ctx, column, layer) {
		log.Warn("No clip at that position", "layer", layer, "column", column)
		return nil
	}
	return tracker.TriggerClip(column, layer, 1)
}

package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/campuskit/campuskit-go/realtime"
	"github.com/campuskit/campuskit-go/tool"
)

var buildingHours = map[string]map[string]string{
	"library":    {"open": "08:00", "close": "22:00"},
	"gym":        {"open": "06:00", "close": "21:00"},
	"cafeteria":  {"open": "07:30", "close": "20:00"},
	"laboratory": {"open": "09:00", "close": "18:00"},
}

func main() {
	client := realtime.NewClient(
		realtime.WithDefaultLogger(),
		realtime.WithEnvKey(realtime.ApiKeyEnvVarNameShort, realtime.ApiKeyEnvVarNameLong),
	)

	registerTools(client)

	client.On(realtime.EventConversationUpdated, func(evt any) {
		update := evt.(realtime.ConversationUpdate)
		if update.Delta == nil {
			return
		}
		if update.Delta.Transcript != "" {
			fmt.Print(update.Delta.Transcript)
		} else if update.Delta.Text != "" {
			fmt.Print(update.Delta.Text)
		}
	})
	client.On(realtime.EventItemCompleted, func(evt any) {
		item := evt.(realtime.ItemEvent).Item
		if item.Role == "assistant" {
			fmt.Println()
		}
	})

	ctx := context.Background()
	if err := client.Connect(ctx); err != nil {
		log.Fatal(err)
	}
	defer client.Disconnect()

	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.WaitForSessionCreated(waitCtx); err != nil {
		log.Fatal(err)
	}

	fmt.Println("session ready - type a message, ctrl-d to quit")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := scanner.Text()
		if text == "" {
			continue
		}
		if err := client.SendUserText(text); err != nil {
			log.Fatal(err)
		}
		completedCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
		if _, err := client.WaitForNextCompletedItem(completedCtx); err != nil {
			cancel()
			log.Fatal(err)
		}
		cancel()
	}
}

func registerTools(client *realtime.Client) {
	err := client.AddTool(tool.Tool{
		Name:        "get_building_hours",
		Description: "Get the opening hours of a campus building",
		Parameters: tool.Parameters{
			Type: "object",
			Properties: tool.Properties{
				"building": {
					Type:        "string",
					Description: "Building name",
					Enum:        []any{"library", "gym", "cafeteria", "laboratory"},
				},
			},
			Required: []string{"building"},
		},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		building, _ := args["building"].(string)
		hours, ok := buildingHours[building]
		if !ok {
			return nil, fmt.Errorf("unknown building %q", building)
		}
		return hours, nil
	})
	if err != nil {
		log.Fatal(err)
	}

	err = client.AddTool(tool.Tool{
		Name:        "get_current_time",
		Description: "Get the current date and time",
		Parameters:  tool.Parameters{Type: "object", Properties: tool.Properties{}},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		return map[string]string{"now": time.Now().Format(time.RFC3339)}, nil
	})
	if err != nil {
		log.Fatal(err)
	}

	slog.Info("registered tools", slog.Int("count", 2))
}

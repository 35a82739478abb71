// medops CLI - command line client for the medops API
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ramevans/Medical-Platform/clients/go/medops"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	baseURL := os.Getenv("MEDOPS_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	client := medops.NewClient(baseURL)
	cmd := os.Args[1]

	switch cmd {
	case "health":
		resp, err := client.Health()
		exitOnError(err)
		printJSON(resp)

	case "devices":
		devices, err := client.ListDevices()
		exitOnError(err)
		for _, d := range devices {
			fmt.Printf("  %d  %s\n", d.DeviceID, d.Name)
		}

	case "send":
		if len(os.Args) < 5 {
			fmt.Fprintln(os.Stderr, "Usage: medops send <sender_id> <recipient_ids> <message>")
			os.Exit(1)
		}
		senderID, err := strconv.ParseInt(os.Args[2], 10, 64)
		exitOnError(err)
		recipients, err := parseIDs(os.Args[3])
		exitOnError(err)
		msg, err := client.SendMessage(senderID, recipients, os.Args[4], nil)
		exitOnError(err)
		fmt.Printf("Sent: %s\n", msg.ID)

	case "read":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: medops read <user_ids>")
			os.Exit(1)
		}
		userIDs, err := parseIDs(os.Args[2])
		exitOnError(err)
		resp, err := client.LatestMessages(userIDs, nil, 20)
		exitOnError(err)
		for _, msg := range resp.Messages {
			ts := msg.Timestamp.Format("2006-01-02 15:04:05")
			fmt.Printf("[%s] %d: %s\n", ts, msg.SenderID, msg.Text)
		}

	case "chats":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: medops chats <user_ids>")
			os.Exit(1)
		}
		userIDs, err := parseIDs(os.Args[2])
		exitOnError(err)
		chats, err := client.Conversations(userIDs)
		exitOnError(err)
		for _, chat := range chats {
			fmt.Printf("  %v\n", chat)
		}

	case "transcribe":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: medops transcribe <audio_file>")
			os.Exit(1)
		}
		taskID, err := client.UploadSpeech(os.Args[2])
		exitOnError(err)
		fmt.Printf("Task: %s\n", taskID)
		for {
			job, err := client.SpeechStatus(taskID)
			exitOnError(err)
			if job.Status == "FINISHED" {
				fmt.Println(job.Result)
				return
			}
			time.Sleep(2 * time.Second)
		}

	case "help", "--help", "-h":
		usage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`medops CLI - medical telemetry and messaging platform

Usage: medops <command> [options]

Commands:
  send <sender> <recipients> <message>  Send a chat message
  read <user_ids>                       Read a conversation's latest messages
  chats <user_ids>                      List conversations including the users
  devices                               List registered devices
  transcribe <audio_file>               Upload audio and wait for transcript
  health                                Check server health

Environment:
  MEDOPS_URL    Server URL (default: http://localhost:8080)`)
}

// parseIDs parses comma-separated user ids, e.g. "1,2,3".
func parseIDs(raw string) ([]int64, error) {
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}

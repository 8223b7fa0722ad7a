package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// admin drives the server's loopback-only /admin/v1 surface, plus direct
// profile database inspection (the db subcommand).
func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "state":
			stateCmd(os.Args[2:])
			return
		case "complete":
			completeCmd(os.Args[2:])
			return
		case "progress":
			progressCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		}
	}
	fmt.Fprintln(os.Stderr, "usage: admin state|complete|progress|db ...")
	os.Exit(2)
}

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	addr := fs.String("addr", "http://127.0.0.1:8080", "server base URL")
	_ = fs.Parse(args)

	body := httpGet(*addr + "/admin/v1/state")
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		fmt.Println(string(body))
		return
	}
	fmt.Println(pretty.String())
}

func completeCmd(args []string) {
	fs := flag.NewFlagSet("complete", flag.ExitOnError)
	addr := fs.String("addr", "http://127.0.0.1:8080", "server base URL")
	session := fs.String("session", "", "session id")
	room := fs.String("room", "", "room id (room1..roomN)")
	_ = fs.Parse(args)
	if *session == "" || *room == "" {
		fmt.Fprintln(os.Stderr, "missing -session or -room")
		os.Exit(2)
	}

	resp := httpPost(*addr+"/admin/v1/rooms/complete", map[string]any{
		"session_id": *session,
		"room_id":    *room,
	})
	fmt.Println(string(resp))
}

func progressCmd(args []string) {
	fs := flag.NewFlagSet("progress", flag.ExitOnError)
	addr := fs.String("addr", "http://127.0.0.1:8080", "server base URL")
	session := fs.String("session", "", "session id")
	rooms := fs.String("rooms", "", "comma-separated completed rooms (omit to keep)")
	quest := fs.String("quest", "", "current quest id (omit to keep)")
	_ = fs.Parse(args)
	if *session == "" {
		fmt.Fprintln(os.Stderr, "missing -session")
		os.Exit(2)
	}

	body := map[string]any{"session_id": *session}
	if *rooms != "" {
		body["completed_rooms"] = splitList(*rooms)
	}
	if *quest != "" {
		body["current_quest"] = *quest
	}
	resp := httpPost(*addr+"/admin/v1/progress", body)
	fmt.Println(string(resp))
}

func httpGet(url string) []byte {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		fmt.Fprintln(os.Stderr, "get:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "status %d: %s\n", resp.StatusCode, b)
		os.Exit(1)
	}
	return b
}

func httpPost(url string, body map[string]any) []byte {
	b, _ := json.Marshal(body)
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		fmt.Fprintln(os.Stderr, "post:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "status %d: %s\n", resp.StatusCode, out)
		os.Exit(1)
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

package main

import (
	"encoding/json"
	"flag"
	"log"
	"math"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"quantumhub.game/internal/protocol"
)

// probe is a headless stand-in for the browser client: it joins the hub,
// walks the avatar toward a portal, stops inside the arm radius, and reports
// the NAVIGATE the dwell timer produces.
func main() {
	var (
		url    = flag.String("url", "ws://127.0.0.1:8080/v1/ws", "hub websocket url")
		portal = flag.String("portal", "start", "portal id to walk to")
		name   = flag.String("name", "probe", "player name")
		token  = flag.String("token", "", "identity token (optional)")
		wait   = flag.Duration("wait", 30*time.Second, "give up after this long")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[probe] ", log.LstdFlags|log.Lmicroseconds)

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		PlayerName:      *name,
	}
	if *token != "" {
		hello.Auth = &protocol.HelloAuth{Token: *token}
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("hello: %v", err)
	}

	var welcome protocol.WelcomeMsg
	if err := conn.ReadJSON(&welcome); err != nil {
		logger.Fatalf("welcome: %v", err)
	}
	logger.Printf("joined session=%s quest=%s", welcome.SessionID, welcome.Progress.CurrentQuest)

	armRadius := welcome.HubParams.ArmRadius
	deadline := time.Now().Add(*wait)

	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(deadline)
		_, raw, err := conn.ReadMessage()
		if err != nil {
			logger.Fatalf("read: %v", err)
		}
		base, err := protocol.DecodeBase(raw)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeNavigate:
			var nav protocol.NavigateMsg
			if err := json.Unmarshal(raw, &nav); err != nil {
				continue
			}
			logger.Printf("navigate portal=%s destination=%s cause=%s tick=%d",
				nav.Portal, nav.Destination, nav.Cause, nav.Tick)
			return
		case protocol.TypeState:
			var st protocol.StateMsg
			if err := json.Unmarshal(raw, &st); err != nil {
				continue
			}
			in, found := steer(st, *portal, armRadius)
			if !found {
				logger.Fatalf("portal %q not visible", *portal)
			}
			if err := conn.WriteJSON(in); err != nil {
				logger.Fatalf("input: %v", err)
			}
		}
	}
	logger.Fatalf("no NAVIGATE within %s", *wait)
}

// steer derives held-key flags that move the avatar toward the target portal,
// releasing everything once inside the arm radius so the dwell timer can run.
func steer(st protocol.StateMsg, portalID string, armRadius float64) (protocol.InputMsg, bool) {
	in := protocol.InputMsg{Type: protocol.TypeInput, ProtocolVersion: protocol.Version}

	var target [3]float64
	found := false
	for _, p := range st.Portals {
		if p.ID == portalID {
			target = p.Pos
			found = true
			break
		}
	}
	if !found {
		return in, false
	}

	dx := target[0] - st.Avatar[0]
	dz := target[2] - st.Avatar[2]
	if math.Hypot(dx, dz) < armRadius*0.75 {
		return in, true // close enough; hold still and dwell
	}

	const deadband = 0.5
	in.Right = dx > deadband
	in.Left = dx < -deadband
	in.Down = dz > deadband
	in.Up = dz < -deadband
	return in, true
}

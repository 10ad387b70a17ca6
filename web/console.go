// Package web serves a register console over WebSocket and the live state
// over HTTP.
package web

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"tofnode/bus"
	"tofnode/core"
	"tofnode/telemetry"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // console is served on a local network
	},
}

// consoleCmd is one console message. "get_map" is answered locally, every
// other action is a bus.Message op.
type consoleCmd struct {
	Action string `json:"action"`
	bus.Message
}

// consoleResponse is sent back for every command.
type consoleResponse struct {
	Type        string         `json:"type"` // "register_map", "reply", "error"
	Reply       *bus.Reply     `json:"reply,omitempty"`
	RegisterMap []RegisterInfo `json:"register_map,omitempty"`
	Message     string         `json:"message,omitempty"`
}

// registerValue is one entry of the /api/registers dump.
type registerValue struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Value   uint8  `json:"value"`
}

// Console serves /ws/registers, /api/state and /api/registers.
type Console struct {
	node    telemetry.Node
	capture func() telemetry.State
	dump    func() [core.RegisterSize]byte
}

// NewConsole creates a console. capture and dump run through node.Exec and
// must not have side effects on the table.
func NewConsole(node telemetry.Node, capture func() telemetry.State, dump func() [core.RegisterSize]byte) *Console {
	return &Console{node: node, capture: capture, dump: dump}
}

// Handler returns the HTTP routes.
func (c *Console) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/registers", c.handleWS)
	mux.HandleFunc("/api/state", c.handleState)
	mux.HandleFunc("/api/registers", c.handleRegisters)
	return mux
}

func (c *Console) handleState(w http.ResponseWriter, r *http.Request) {
	var st telemetry.State
	if err := c.node.Exec(r.Context(), func() { st = c.capture() }); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(st)
}

// handleRegisters dumps the whole table. Unlike a bus read it leaves the
// measure counters alone.
func (c *Console) handleRegisters(w http.ResponseWriter, r *http.Request) {
	var table [core.RegisterSize]byte
	if err := c.node.Exec(r.Context(), func() { table = c.dump() }); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	out := make([]registerValue, len(table))
	for i, info := range RegisterMap() {
		out[i] = registerValue{Address: info.Address, Name: info.Name, Value: table[i]}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func (c *Console) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("console: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	if err := conn.WriteJSON(consoleResponse{Type: "register_map", RegisterMap: RegisterMap()}); err != nil {
		return
	}

	for {
		var cmd consoleCmd
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("console: websocket error: %v", err)
			}
			return
		}
		if err := conn.WriteJSON(c.run(r.Context(), cmd)); err != nil {
			return
		}
	}
}

func (c *Console) run(ctx context.Context, cmd consoleCmd) consoleResponse {
	if cmd.Action == "get_map" {
		return consoleResponse{Type: "register_map", RegisterMap: RegisterMap()}
	}

	var id uint8
	if err := c.node.Exec(ctx, func() { id = c.capture().ID }); err != nil {
		return consoleResponse{Type: "error", Message: err.Error()}
	}

	cmd.Message.Op = cmd.Action
	req, err := cmd.Message.Request(id)
	if err != nil {
		return consoleResponse{Type: "error", Message: err.Error()}
	}

	resp, reqErr := c.node.Do(ctx, req)
	if ctx.Err() != nil {
		return consoleResponse{Type: "error", Message: ctx.Err().Error()}
	}
	reply := bus.Reply{ID: resp.ID, Status: resp.Status, Data: resp.Data}
	if reqErr != nil {
		reply.Error = reqErr.Error()
	}
	// The console always gets an answer, whatever the return level.
	return consoleResponse{Type: "reply", Reply: &reply}
}

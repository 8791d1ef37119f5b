// Package main runs a demo WebSocket client streaming driver positions.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Seed an order and a route
	body := []byte(`{"orders":[{"folio":"1","taxId":"76.921.029-6","clientName":"Demo","location":{"lat":-33.45,"lng":-70.66}}]}`)
	req, _ := http.NewRequest(http.MethodPost, base+"/v1/orders", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	var created struct {
		Orders []struct {
			ID string `json:"id"`
		} `json:"orders"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		log.Fatal(err)
	}
	if len(created.Orders) == 0 {
		log.Fatal("no orders created")
	}

	body = []byte(fmt.Sprintf(`{"name":"demo","driverId":"drv-demo","orderIds":[%q]}`, created.Orders[0].ID))
	req, _ = http.NewRequest(http.MethodPost, base+"/v1/routes", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp2.Body.Close() }()
	var route struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp2.Body).Decode(&route); err != nil {
		log.Fatal(err)
	}
	log.Printf("route %s created", route.ID)

	// Stream positions over the socket
	u := url.URL{Scheme: "ws", Host: fmt.Sprintf("localhost:%s", port), Path: "/v1/positions/ws"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = conn.Close() }()

	lat, lng := -33.46, -70.67
	for i := 0; i < 5; i++ {
		lat += 0.001
		lng += 0.001
		msg := map[string]any{"routeId": route.ID, "driverId": "drv-demo", "lat": lat, "lng": lng}
		if err := conn.WriteJSON(msg); err != nil {
			log.Fatal(err)
		}
		var ack map[string]any
		if err := conn.ReadJSON(&ack); err != nil {
			log.Fatal(err)
		}
		log.Printf("ack: %v", ack)
		time.Sleep(500 * time.Millisecond)
	}
}

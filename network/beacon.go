package network

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net"
	"time"

	"go.uber.org/zap"
)

// BeaconInterval is how often the catalog announce datagram is sent.
const BeaconInterval = 60 * time.Second

// beaconPayload is the JSON announce datagram the catalog expects.
type beaconPayload struct {
	Type        string `json:"type"`
	Owner       string `json:"owner"`
	Port        int    `json:"port"`
	Project     string `json:"project"`
	PubKey      string `json:"pub_key"`
	DisplayName string `json:"display_name"`
}

// RunBeacon sends a UDP catalog announce to catalogAddr every
// BeaconInterval until ctx is cancelled. It is entirely best-effort: a
// send failure is logged and the loop continues.
func RunBeacon(ctx context.Context, catalogAddr string, port int, pubKey []byte, displayName string, logger *zap.SugaredLogger) {
	payload := beaconPayload{
		Type:        CatalogType,
		Owner:       displayName,
		Port:        port,
		Project:     CatalogProject,
		PubKey:      hex.EncodeToString(pubKey),
		DisplayName: displayName,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Errorw("encode beacon payload", "error", err)
		return
	}

	ticker := time.NewTicker(BeaconInterval)
	defer ticker.Stop()

	sendOnce := func() {
		conn, err := net.Dial("udp", catalogAddr)
		if err != nil {
			logger.Debugw("beacon dial failed", "catalog", catalogAddr, "error", err)
			return
		}
		defer conn.Close()
		if _, err := conn.Write(data); err != nil {
			logger.Debugw("beacon send failed", "catalog", catalogAddr, "error", err)
		}
	}

	sendOnce()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sendOnce()
		}
	}
}

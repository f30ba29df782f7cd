package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sockline/sockline/pkg/conn"
	"github.com/sockline/sockline/pkg/logging"
	"github.com/sockline/sockline/pkg/socket"
)

type chatMessage struct {
	From string `json:"from"`
	Text string `json:"text"`
	Sent int64  `json:"sent"`
}

func main() {
	logger := logging.NewLogger(
		logging.WithDevelopmentMode(),
		logging.WithLogLevel(logging.DEBUG),
	)

	addr := "wss://echo.websocket.org"
	if len(os.Args) > 1 {
		addr = os.Args[1]
	}

	c := conn.New[chatMessage](addr,
		conn.WithLogger(logger),
		conn.WithMaxRetries(0),
		conn.WithRetryOnClose(),
		conn.WithRetryDelay(time.Second),
	)

	c.On(conn.EventConnected, func() {
		logger.Info("connected", logging.String("addr", addr))
	})
	c.On(conn.EventDisconnected, func() {
		logger.Warn("disconnected")
	})
	c.On(conn.EventPermanentlyDisconnected, func() {
		logger.Error("gave up reconnecting")
	})
	c.OnMessage(func(m chatMessage) {
		logger.Info("message",
			logging.String("from", m.From),
			logging.String("text", m.Text),
		)
	})
	c.OnInvalidMessage(func(p socket.Payload) {
		logger.Debug("unclassified payload", logging.Int("bytes", len(p.Data)))
	})
	c.OnBinaryMessage(func(data []byte) {
		logger.Debug("binary payload", logging.Int("bytes", len(data)))
	})

	logger.Info("connecting", logging.String("addr", addr))
	c.Connect()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			err := c.Send(chatMessage{
				From: "examples",
				Text: "ping",
				Sent: time.Now().Unix(),
			})
			if err != nil {
				logger.Error("send failed", logging.Error(err))
			}
		case <-sig:
			logger.Info("shutting down")
			c.Disconnect()
			return
		}
	}
}

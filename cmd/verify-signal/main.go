package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"kabuto-relay/internal/api"
)

// signalPayload mirrors the webhook JSON body of spec §4.1, without the
// passphrase field this debug tool has no use for.
type signalPayload struct {
	Action     string   `json:"action"`
	Ticker     string   `json:"ticker"`
	Quantity   int      `json:"quantity"`
	Price      string   `json:"price"`
	EntryPrice float64  `json:"entry_price"`
	StopLoss   *float64 `json:"stop_loss"`
	TakeProfit *float64 `json:"take_profit"`
	Timestamp  string   `json:"timestamp"`
	SignalID   string   `json:"signal_id"`
}

func main() {
	reader := bufio.NewReader(os.Stdin)
	text, _ := reader.ReadString('\x00') // read until EOF
	text = strings.TrimSpace(text)

	if text == "" {
		if len(os.Args) > 1 {
			text = strings.Join(os.Args[1:], " ")
		} else {
			color.Red("no input provided; pipe a JSON signal body on stdin or pass it as an argument")
			os.Exit(1)
		}
	}

	fmt.Println("----------------------------------------")
	fmt.Println("VERIFYING SIGNAL")
	fmt.Println("----------------------------------------")
	fmt.Printf("Input: %s\n\n", text)

	var sig signalPayload
	if err := json.Unmarshal([]byte(text), &sig); err != nil {
		color.Red("parse error: %v", err)
		os.Exit(1)
	}

	switch sig.Action {
	case "buy", "sell":
	default:
		color.Red("invalid action %q: must be buy or sell", sig.Action)
		os.Exit(1)
	}

	if sig.Ticker == "" {
		color.Red("ticker is required")
		os.Exit(1)
	}
	if sig.Quantity <= 0 {
		color.Red("quantity must be positive, got %d", sig.Quantity)
		os.Exit(1)
	}

	signalID := sig.SignalID
	if signalID == "" {
		signalID = "preview"
	}
	checksum := api.GenerateChecksum(signalID, sig.Action, sig.Ticker, sig.Quantity, sig.EntryPrice, sig.StopLoss, sig.TakeProfit)

	fmt.Printf("Action:      %s\n", sig.Action)
	fmt.Printf("Ticker:      %s\n", sig.Ticker)
	fmt.Printf("Quantity:    %d\n", sig.Quantity)
	fmt.Printf("Price type:  %s\n", sig.Price)
	fmt.Printf("Entry price: %.2f\n", sig.EntryPrice)
	fmt.Printf("Checksum:    %s\n", checksum)
	fmt.Println("----------------------------------------")
	color.Green("shape is valid")
}

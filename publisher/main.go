package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"jewelry_checkout/internal/model"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/segmentio/kafka-go"
)

const (
	kafkaBroker = "localhost:9092"
	topic       = "auction-wins"
)

var jewelryKinds = []string{"Ring", "Necklace", "Bracelet", "Earrings", "Pendant", "Brooch"}
var gemstones = []string{"Diamond", "Sapphire", "Emerald", "Ruby", "Opal", "Pearl"}

// generateAuctionWin создает случайное, но валидное событие выигрыша аукциона,
// опираясь на правила валидации из структуры model.AuctionWin
func generateAuctionWin() (model.AuctionWin, error) {
	gofakeit.Seed(time.Now().UnixNano())

	auctionID := gofakeit.Password(true, false, true, false, false, 20)
	kind := jewelryKinds[gofakeit.Number(0, len(jewelryKinds)-1)]
	stone := gemstones[gofakeit.Number(0, len(gemstones)-1)]

	win := model.AuctionWin{
		AuctionID: auctionID,
		Item: model.JewelryItem{
			ID:          "item_" + gofakeit.Password(false, true, true, false, false, 8),
			Title:       fmt.Sprintf("%s %s", stone, kind),
			Description: gofakeit.Sentence(8),
		},
		BidAmount:   float64(gofakeit.Number(500, 10000)) + float64(gofakeit.Number(0, 99))/100,
		WinnerEmail: gofakeit.Email(),
		WonAt:       time.Now().UTC(),
	}

	return win, nil
}

// runAutoMode запускает режим автоматической отправки сообщений каждые 10 секунд
func runAutoMode(writer *kafka.Writer) {
	log.Println("Starting auto-generation mode. New message every 10 seconds.")
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		win, err := generateAuctionWin()
		if err != nil {
			log.Printf("Error generating random auction win: %v", err)
			continue
		}

		messageBytes, err := json.Marshal(win)
		if err != nil {
			log.Printf("Error marshalling auction win to JSON: %v", err)
			continue
		}

		sendMessage(writer, messageBytes, fmt.Sprintf("random auction win %s", win.AuctionID))
	}
}

// runFileMode запускает режим отправки сообщения из файла
func runFileMode(writer *kafka.Writer) {
	if len(os.Args) < 2 {
		log.Fatalf("Usage in file mode: go run main.go <json_file_name>")
	}
	filePath := os.Args[1]
	log.Printf("Starting file mode. Reading from: %s", filePath)

	messageBytes, err := os.ReadFile(filePath)
	if err != nil {
		log.Fatalf("Failed to read file %s: %v", filePath, err)
	}

	sendMessage(writer, messageBytes, fmt.Sprintf("file %s", filePath))
}

// sendMessage — общая функция для отправки сообщения в Kafka
func sendMessage(writer *kafka.Writer, messageValue []byte, messageSource string) {
	msg := kafka.Message{
		Value: messageValue,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Printf("Sending message from %s to topic: %s", messageSource, topic)
	err := writer.WriteMessages(ctx, msg)
	if err != nil {
		log.Printf("Failed to send message to Kafka: %v", err)
		return
	}

	log.Println("Message sent successfully!")
}

func main() {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(kafkaBroker),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}
	defer writer.Close()

	fmt.Println("Select publisher mode:")
	fmt.Println("1: Auto-generate and send a random message every 10 seconds")
	fmt.Println("2: Send a message from a specified file")
	fmt.Print("Enter mode (1 or 2): ")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Scan()
	mode := strings.TrimSpace(scanner.Text())

	switch mode {
	case "1":
		os.Args = os.Args[:1]
		runAutoMode(writer)
	case "2":
		runFileMode(writer)
	default:
		log.Fatalf("Invalid mode selected. Please enter '1' or '2'.")
	}
}

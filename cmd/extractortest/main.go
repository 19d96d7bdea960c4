// Command extractortest exercises the live Gemini extractor and reply
// client against a sample investor conversation. It is a manual smoke
// test for prompt and model changes, not part of the deployed system.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/ozlistings/oz-ai-platform/internal/conversation"
	"github.com/ozlistings/oz-ai-platform/internal/profile"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	geminiKey := os.Getenv("GEMINI_API_KEY")
	if geminiKey == "" {
		log.Fatal("GEMINI_API_KEY is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	fmt.Println("== Extraction ==")

	extractor, err := conversation.NewGeminiExtractor(ctx, geminiKey, "gemini-2.5-flash")
	if err != nil {
		log.Fatalf("create extractor: %v", err)
	}
	defer extractor.Close()

	samples := []string{
		"Hi, I just sold my company and have about $2M in capital gains.",
		"I'm a developer with a project in Arizona looking for OZ equity.",
		"What is an opportunity zone?",
	}

	for _, msg := range samples {
		start := time.Now()
		result, err := extractor.Extract(ctx, conversation.ExtractionInput{
			Message:      msg,
			Profile:      profile.View{UserID: "extractortest"},
			MessageCount: 1,
		})
		elapsed := time.Since(start).Round(time.Millisecond)
		if err != nil {
			fmt.Printf("  message %q: error after %v: %v\n", msg, elapsed, err)
			continue
		}
		fmt.Printf("  message %q (%v):\n", msg, elapsed)
		if len(result.Fields) == 0 {
			fmt.Println("    no fields extracted")
		}
		for k, v := range result.Fields {
			fmt.Printf("    %s = %v\n", k, v)
		}
	}

	fmt.Println("\n== Reply generation ==")

	llm, err := conversation.NewGeminiLLMClient(ctx, geminiKey, "gemini-2.5-flash")
	if err != nil {
		log.Fatalf("create llm client: %v", err)
	}

	req := conversation.LLMRequest{
		System: []string{"You are Ozzie, an Opportunity Zone investment assistant. Keep replies brief."},
		Messages: []conversation.ChatMessage{
			{Role: conversation.ChatRoleUser, Content: "I have a $500k capital gain from a stock sale. Can OZ funds defer the tax?"},
		},
		MaxTokens:   200,
		Temperature: 0.7,
	}

	start := time.Now()
	resp, err := llm.Complete(ctx, req)
	elapsed := time.Since(start).Round(time.Millisecond)
	if err != nil {
		log.Fatalf("reply error after %v: %v", elapsed, err)
	}
	fmt.Printf("  reply (%v): %s\n", elapsed, resp.Text)
	fmt.Printf("  tokens: in=%d out=%d\n", resp.Usage.InputTokens, resp.Usage.OutputTokens)
}

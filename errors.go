/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

var (
	ErrRoomAlreadyExists = errors.New("Room already exists")
	ErrRoomNotFound      = errors.New("Room does not exist")
	ErrRoomNotJoinable   = errors.New("Game has already started")
	ErrGenerationFailed  = errors.New("Failed to generate quiz questions")
	ErrTextTooShort      = fmt.Errorf("Please provide at least %d characters of text", minQuizText)
	ErrNotHost           = errors.New("Only the host can do that")
	ErrGameNotWaiting    = errors.New("Game is not waiting for players")
	ErrGameNotPlaying    = errors.New("Game is not in progress")
	ErrNotInRoom         = errors.New("You are not in that room")
	ErrAlreadyInRoom     = errors.New("You are already in a room")
	ErrAlreadyAnswered   = errors.New("Answer already submitted for this question")
	ErrStaleQuestion     = errors.New("That question is no longer active")
	ErrNoQuestions       = errors.New("A quiz needs at least one question")
	ErrGenerating        = errors.New("A quiz is already being generated")
	ErrInvalidPayload    = errors.New("Invalid request payload")
	ErrRateLimited       = errors.New("Too many requests, slow down")
	ErrUnknownCommand    = errors.New("Unknown command")
)

// publicErrors are the sentinels whose text may be shown to clients.
var publicErrors = []error{
	ErrRoomAlreadyExists,
	ErrRoomNotFound,
	ErrRoomNotJoinable,
	ErrTextTooShort,
	ErrGenerationFailed,
	ErrNotHost,
	ErrGameNotWaiting,
	ErrGameNotPlaying,
	ErrNotInRoom,
	ErrAlreadyInRoom,
	ErrAlreadyAnswered,
	ErrStaleQuestion,
	ErrNoQuestions,
	ErrGenerating,
	ErrInvalidPayload,
	ErrRateLimited,
	ErrUnknownCommand,
}

// publicMessage maps err onto the sentinel a client is allowed to see.
func publicMessage(err error) string {
	for _, e := range publicErrors {
		if errors.Is(err, e) {
			return e.Error()
		}
	}
	return "Internal server error"
}

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"/\">%s</a></body></html>", body))

	return htmlBody.String()
}

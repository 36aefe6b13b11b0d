// Package search implements similarity search over transcript chunks with
// metadata filtering, plus an intent-driven variant that extracts filters
// from free text.
package search

import "time"

// Query is a similarity search request. Filter fields are optional and
// combine as a conjunction; leaving them all unset means unfiltered search.
type Query struct {
	QueryText         string     `json:"queryText"`
	MaxResults        *int       `json:"maxResults,omitempty"`
	MinRelevanceScore *float32   `json:"minRelevanceScore,omitempty"`
	EpisodeDate       *time.Time `json:"episodeDate,omitempty"`
	EpisodeNumber     *int       `json:"episodeNumber,omitempty"`
	EpisodeTitle      string     `json:"episodeTitle,omitempty"`
	ChunkTopic        string     `json:"chunkTopic,omitempty"`
	Topic             string     `json:"topic,omitempty"` // single topic to match within Topics
}

// Record is one search hit with denormalized chunk fields.
type Record struct {
	ID             string    `json:"id"`
	Text           string    `json:"text"`
	EpisodeNumber  string    `json:"episodeNumber"`
	EpisodeDate    time.Time `json:"episodeDate"`
	StartTime      float64   `json:"startTime"`
	EndTime        float64   `json:"endTime"`
	EpisodeTitle   string    `json:"episodeTitle"`
	ChunkTopic     string    `json:"chunkTopic"`
	Topics         string    `json:"topics"`
	RelevanceScore float32   `json:"relevanceScore"`
}

// Response is the payload of a successful search.
type Response struct {
	Results      []Record `json:"results"`
	TotalResults int      `json:"totalResults"`
}

// Result is the structured success/failure envelope returned to callers.
// Provider failures produce a failed Result with a message; raw errors
// never cross the search boundary.
type Result struct {
	Success      bool      `json:"success"`
	Response     *Response `json:"response,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
}

func failure(msg string) Result {
	return Result{Success: false, ErrorMessage: msg}
}

func success(records []Record, total int) Result {
	return Result{Success: true, Response: &Response{Results: records, TotalResults: total}}
}

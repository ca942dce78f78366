// Package models tracks all api models for request and responses
package models

import (
	"github.com/aouyang1/quoteframe/slides"
	"github.com/aouyang1/quoteframe/slideshow"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type SlideListResponse struct {
	Slides []slides.Slide `json:"slides"`
	Total  int            `json:"total"`
}

type AddSlideResponse struct {
	Index   int             `json:"index"`
	Slide   slides.Slide    `json:"slide"`
	State   slideshow.State `json:"state"`
	Message string          `json:"message"`
}

type RemoveSlideResponse struct {
	Index   int             `json:"index"`
	State   slideshow.State `json:"state"`
	Message string          `json:"message"`
}

type SwipeRequest struct {
	X float64 `json:"x"`
}

type UpdatePreferenceRequest struct {
	Value string `json:"value"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

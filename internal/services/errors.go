package services

import "errors"

var (
	ErrDatasetNotFound = errors.New("dataset not found")
	ErrInvalidRange    = errors.New("invalid year range")
	ErrNoDefault       = errors.New("default dataset unavailable")
)

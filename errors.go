package reideval

import "errors"

var (
	// ErrInvalidSplit is returned at construction when the query/gallery
	// split point or the label and feature counts do not line up
	ErrInvalidSplit = errors.New("invalid query/gallery split")
	// ErrIndexOutOfRange is returned when a query index is outside [0, numQuery)
	ErrIndexOutOfRange = errors.New("query index out of range")
	// ErrEmptyResult is returned when a filtered ranking or a sampled
	// distribution group has nothing in it
	ErrEmptyResult = errors.New("empty result")
	// ErrInvalidArgument is returned for non-positive k, bins or ranks
	ErrInvalidArgument = errors.New("invalid argument")
)

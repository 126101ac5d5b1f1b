package repository

import "errors"

var (
	// ErrNotFound indica que ninguna fila cumple la condicion pedida.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate indica una violacion de unicidad (por ejemplo email repetido).
	ErrDuplicate = errors.New("duplicate")
)

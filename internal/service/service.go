package service

import (
	"github.com/sportai/fincast/internal/domain"
)

// ResultRepository is re-exported from domain for convenience
type ResultRepository = domain.ResultRepository

// ActionPublisher is re-exported from domain for convenience
type ActionPublisher = domain.ActionPublisher

package service

import "errors"

// 引擎对外的错误类别，调用方用errors.Is判别
var (
	ErrNotFound          = errors.New("record not found")
	ErrInvalidState      = errors.New("operation not allowed in current status")
	ErrQuantityViolation = errors.New("ordered quantity below dispatched quantity")
	ErrValidation        = errors.New("invalid input")
	ErrEmptyDispatch     = errors.New("dispatch has no quantity")
)

package order

import "errors"

// error codes used by controllers

type ErrCode string

const (
	ErrNotFound     ErrCode = "NOT_FOUND"
	ErrConflict     ErrCode = "CONFLICT"
	ErrInvalidInput ErrCode = "INVALID_INPUT"
	ErrNoStock      ErrCode = "NO_STOCK"
	ErrOverReturn   ErrCode = "OVER_RETURN"
)

type codedError struct {
	code ErrCode
	msg  string
}

func (e codedError) Error() string {
	if e.msg == "" {
		return string(e.code)
	}
	return string(e.code) + ": " + e.msg
}

func (e codedError) Code() ErrCode { return e.code }

func makeErr(c ErrCode, msg string) error { return codedError{code: c, msg: msg} }

// Code extracts error code
func Code(err error) ErrCode {
	var ce interface{ Code() ErrCode }
	if errors.As(err, &ce) {
		return ce.Code()
	}
	return ""
}

package log_v1

import (
	"fmt"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	status "google.golang.org/grpc/status"
)

// ErrorOffsetOutOfRange is returned to clients when a requested offset
// falls outside the log's [base_offset, next_offset) range.
type ErrorOffsetOutOfRange struct {
	Offset uint64
}

// GRPCStatus reports a NotFound status carrying a localized detail message.
func (e ErrorOffsetOutOfRange) GRPCStatus() *status.Status {
	st := status.New(
		codes.NotFound,
		fmt.Sprintf("offset %d out of range", e.Offset),
	)

	d := &errdetails.LocalizedMessage{
		Locale:  "en-US",
		Message: fmt.Sprintf("the requested offset is outside the log's range: %d", e.Offset),
	}
	withDetails, err := st.WithDetails(d)
	if err != nil {
		return st
	}
	return withDetails
}

func (e ErrorOffsetOutOfRange) Error() string {
	return e.GRPCStatus().Err().Error()
}

// ErrorOffsetNotFound is returned to clients when a requested offset lies
// within the log's range but its segment has no such entry — a gap left by
// a torn write that recovery trimmed, or by a pre-existing hole.
type ErrorOffsetNotFound struct {
	Offset uint64
}

func (e ErrorOffsetNotFound) GRPCStatus() *status.Status {
	st := status.New(
		codes.NotFound,
		fmt.Sprintf("offset %d not found", e.Offset),
	)

	d := &errdetails.LocalizedMessage{
		Locale:  "en-US",
		Message: fmt.Sprintf("no record exists at offset %d", e.Offset),
	}
	withDetails, err := st.WithDetails(d)
	if err != nil {
		return st
	}
	return withDetails
}

func (e ErrorOffsetNotFound) Error() string {
	return e.GRPCStatus().Err().Error()
}

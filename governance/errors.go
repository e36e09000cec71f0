// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package governance

import "errors"

// Kind classifies a governance error for callers that map errors onto a
// transport, such as HTTP status codes
type Kind int

const (
	KindService Kind = iota
	KindInvalidInput
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindInvalidState
)

func (k Kind) String() string {
	switch k {
	case KindService:
		return "service error"
	case KindInvalidInput:
		return "invalid input"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not found"
	case KindConflict:
		return "conflict"
	case KindInvalidState:
		return "invalid state"
	}
	return "unknown"
}

// Error is returned by every governance operation. Message is safe to show
// to the end user.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the bare per-kind sentinels below
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Message != "" || t.Err != nil {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrInvalidInput = &Error{Kind: KindInvalidInput}
	ErrUnauthorized = &Error{Kind: KindUnauthorized}
	ErrForbidden    = &Error{Kind: KindForbidden}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrConflict     = &Error{Kind: KindConflict}
	ErrInvalidState = &Error{Kind: KindInvalidState}
	ErrService      = &Error{Kind: KindService}
)

const (
	MsgInvalidVoteChoice     = "Invalid vote choice. Must be one of: up, down, abstain."
	MsgAlreadyVoted          = "You have already voted on this proposal."
	MsgProposalNotActive     = "Proposal is not active."
	MsgVotingEnded           = "Voting period has ended."
	MsgProposalExistsInEpoch = "A proposal already exists for this squad in the current epoch."
	MsgProposalNotFound      = "Proposal not found."
	MsgSquadNotFound         = "Squad not found."
	MsgInvalidProposalID     = "Invalid proposal id."
	MsgNotSquadLeader        = "Only the squad leader can create proposals."
	MsgNotSquadMember        = "Only squad members can vote on this proposal."
	MsgWalletRequired        = "A connected wallet is required."
)

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func serviceError(msg string, err error) *Error {
	return newError(KindService, msg, err)
}

// KindOf returns the Kind of err, or KindService for errors that did not
// originate in this package
func KindOf(err error) Kind {
	var gErr *Error
	if errors.As(err, &gErr) {
		return gErr.Kind
	}
	return KindService
}

// MessageOf returns the user-facing message for err. Service errors never
// expose their detail.
func MessageOf(err error) string {
	var gErr *Error
	if errors.As(err, &gErr) && gErr.Kind != KindService && gErr.Message != "" {
		return gErr.Message
	}
	return "Internal server error."
}

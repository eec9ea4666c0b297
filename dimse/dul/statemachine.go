package dul

import (
	"fmt"
	"sync"
)

// State is a DICOM Upper Layer state (PS3.8 table 9-10). Only the
// states this implementation can actually reach are modeled; the
// ARTIM-window states 9-12 collapse into the transitions below.
type State int

const (
	Sta1  State = iota + 1 // idle
	Sta2                   // transport open, awaiting A-ASSOCIATE-RQ
	Sta3                   // awaiting local associate response
	Sta4                   // awaiting transport connection opening
	Sta5                   // awaiting A-ASSOCIATE-AC/RJ
	Sta6                   // association established
	Sta7                   // awaiting A-RELEASE-RP
	Sta8                   // awaiting local release response
	Sta13                  // awaiting transport close
)

// Event is a DICOM Upper Layer event.
type Event int

const (
	AE1  Event = iota + 1 // transport connect confirmation
	AE2                   // transport connection indication
	AE3                   // A-ASSOCIATE request (local)
	AE4                   // A-ASSOCIATE response: accept (local)
	AE5                   // A-ASSOCIATE response: reject (local)
	AE6                   // A-ASSOCIATE-AC received
	AE7                   // A-ASSOCIATE-RJ received
	AE8                   // A-ASSOCIATE-RQ received
	AE9                   // P-DATA request (local)
	AE10                  // P-DATA-TF received
	AE11                  // A-RELEASE request (local)
	AE12                  // A-RELEASE-RQ received
	AE13                  // A-RELEASE-RP received
	AE14                  // A-RELEASE response (local)
	AE15                  // A-ABORT request (local)
	AE16                  // A-ABORT received
	AE17                  // transport closed
	AE18                  // ARTIM timer expired
	AE19                  // invalid PDU received
)

// Action is what the caller must do after a transition.
type Action int

const (
	ActionNone Action = iota
	ActionSendAssociateRQ
	ActionSendAssociateAC
	ActionSendAssociateRJ
	ActionSendData
	ActionSendReleaseRQ
	ActionSendReleaseRP
	ActionSendAbort
	ActionIssueAssociateConfirmation
	ActionIssueAssociateIndication
	ActionIssueDataIndication
	ActionIssueReleaseConfirmation
	ActionIssueReleaseIndication
	ActionCloseTransport
)

// transition is one row of the state table.
type transition struct {
	next   State
	action Action
}

// stateTable encodes PS3.8 table 9-10 for the modeled states. A
// (state, event) pair absent from the table is a protocol violation.
var stateTable = map[State]map[Event]transition{
	Sta1: {
		AE1: {Sta4, ActionNone},
		AE2: {Sta2, ActionNone},
		AE3: {Sta4, ActionSendAssociateRQ},
		AE5: {Sta1, ActionSendAssociateRJ},
	},
	Sta2: {
		AE6:  {Sta13, ActionSendAbort},
		AE7:  {Sta13, ActionSendAbort},
		AE8:  {Sta3, ActionIssueAssociateIndication},
		AE15: {Sta13, ActionSendAbort},
		AE16: {Sta1, ActionCloseTransport},
		AE17: {Sta1, ActionNone},
		AE19: {Sta13, ActionSendAbort},
	},
	Sta3: {
		AE4:  {Sta6, ActionSendAssociateAC},
		AE5:  {Sta13, ActionSendAssociateRJ},
		AE15: {Sta13, ActionSendAbort},
		AE16: {Sta1, ActionCloseTransport},
		AE17: {Sta1, ActionNone},
	},
	Sta4: {
		AE1:  {Sta5, ActionSendAssociateRQ},
		AE3:  {Sta5, ActionSendAssociateRQ},
		AE15: {Sta1, ActionCloseTransport},
		AE17: {Sta1, ActionNone},
	},
	Sta5: {
		AE6:  {Sta6, ActionIssueAssociateConfirmation},
		AE7:  {Sta1, ActionCloseTransport},
		AE15: {Sta13, ActionSendAbort},
		AE16: {Sta1, ActionCloseTransport},
		AE17: {Sta1, ActionNone},
		AE19: {Sta13, ActionSendAbort},
	},
	Sta6: {
		AE9:  {Sta6, ActionSendData},
		AE10: {Sta6, ActionIssueDataIndication},
		AE11: {Sta7, ActionSendReleaseRQ},
		AE12: {Sta8, ActionIssueReleaseIndication},
		AE15: {Sta13, ActionSendAbort},
		AE16: {Sta1, ActionCloseTransport},
		AE17: {Sta1, ActionNone},
		AE19: {Sta13, ActionSendAbort},
	},
	Sta7: {
		AE10: {Sta7, ActionNone},
		AE12: {Sta7, ActionSendReleaseRP},
		AE13: {Sta1, ActionCloseTransport},
		AE15: {Sta13, ActionSendAbort},
		AE16: {Sta1, ActionCloseTransport},
		AE17: {Sta1, ActionNone},
		AE18: {Sta13, ActionSendAbort},
		AE19: {Sta13, ActionSendAbort},
	},
	Sta8: {
		AE10: {Sta8, ActionNone},
		AE11: {Sta13, ActionSendReleaseRQ},
		AE14: {Sta13, ActionSendReleaseRP},
		AE15: {Sta13, ActionSendAbort},
		AE16: {Sta1, ActionCloseTransport},
		AE17: {Sta1, ActionNone},
		AE19: {Sta13, ActionSendAbort},
	},
	Sta13: {
		AE17: {Sta1, ActionNone},
	},
}

// StateMachine tracks one association's upper-layer state.
type StateMachine struct {
	mu           sync.RWMutex
	currentState State
}

// NewStateMachine starts in the idle state.
func NewStateMachine() *StateMachine {
	return &StateMachine{currentState: Sta1}
}

// CurrentState returns the current state.
func (sm *StateMachine) CurrentState() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.currentState
}

// ProcessEvent applies event, advancing the state and returning the
// action the caller must perform. An event the current state doesn't
// admit leaves the state unchanged and returns an error.
func (sm *StateMachine) ProcessEvent(event Event) (Action, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	tr, ok := stateTable[sm.currentState][event]
	if !ok {
		return ActionNone, fmt.Errorf("invalid transition: state=%v event=%v", sm.currentState, event)
	}
	sm.currentState = tr.next
	return tr.action, nil
}

var stateNames = map[State]string{
	Sta1:  "Sta1 (Idle)",
	Sta2:  "Sta2 (Transport Open)",
	Sta3:  "Sta3 (Awaiting Local Associate Response)",
	Sta4:  "Sta4 (Awaiting Transport Opening)",
	Sta5:  "Sta5 (Awaiting Associate AC/RJ)",
	Sta6:  "Sta6 (Association Established)",
	Sta7:  "Sta7 (Awaiting Release RP)",
	Sta8:  "Sta8 (Awaiting Local Release Response)",
	Sta13: "Sta13 (Awaiting Transport Close)",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", int(s))
}

var eventNames = map[Event]string{
	AE1:  "AE-1 (Transport Connect Confirmation)",
	AE2:  "AE-2 (Transport Connection Indication)",
	AE3:  "AE-3 (A-ASSOCIATE Request)",
	AE4:  "AE-4 (A-ASSOCIATE Response Accept)",
	AE5:  "AE-5 (A-ASSOCIATE Response Reject)",
	AE6:  "AE-6 (A-ASSOCIATE-AC PDU)",
	AE7:  "AE-7 (A-ASSOCIATE-RJ PDU)",
	AE8:  "AE-8 (A-ASSOCIATE-RQ PDU)",
	AE9:  "AE-9 (P-DATA Request)",
	AE10: "AE-10 (P-DATA-TF PDU)",
	AE11: "AE-11 (A-RELEASE Request)",
	AE12: "AE-12 (A-RELEASE-RQ PDU)",
	AE13: "AE-13 (A-RELEASE-RP PDU)",
	AE14: "AE-14 (A-RELEASE Response)",
	AE15: "AE-15 (A-ABORT Request)",
	AE16: "AE-16 (A-ABORT PDU)",
	AE17: "AE-17 (Transport Closed)",
	AE18: "AE-18 (ARTIM Timer Expired)",
	AE19: "AE-19 (Invalid PDU)",
}

func (e Event) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", int(e))
}

var actionNames = map[Action]string{
	ActionNone:                       "None",
	ActionSendAssociateRQ:            "Send A-ASSOCIATE-RQ",
	ActionSendAssociateAC:            "Send A-ASSOCIATE-AC",
	ActionSendAssociateRJ:            "Send A-ASSOCIATE-RJ",
	ActionSendData:                   "Send P-DATA-TF",
	ActionSendReleaseRQ:              "Send A-RELEASE-RQ",
	ActionSendReleaseRP:              "Send A-RELEASE-RP",
	ActionSendAbort:                  "Send A-ABORT",
	ActionIssueAssociateConfirmation: "Issue A-ASSOCIATE Confirmation",
	ActionIssueAssociateIndication:   "Issue A-ASSOCIATE Indication",
	ActionIssueDataIndication:        "Issue P-DATA Indication",
	ActionIssueReleaseConfirmation:   "Issue A-RELEASE Confirmation",
	ActionIssueReleaseIndication:     "Issue A-RELEASE Indication",
	ActionCloseTransport:             "Close Transport",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", int(a))
}

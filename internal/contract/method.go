package contract

import (
	"fmt"

	contracterrors "tripshare/internal/contract/errors"
)

// Method selects a NoOp call's transition. The wire form is the first call argument.
type Method uint8

const (
	MethodInitializeEscrow Method = iota + 1
	MethodFundEscrow
	MethodUpdate
	MethodParticipate
	MethodCancelParticipation
	MethodStart
	MethodFinish
)

var methodNames = map[Method]string{
	MethodInitializeEscrow:    "initializeEscrow",
	MethodFundEscrow:          "fundEscrow",
	MethodUpdate:              "update",
	MethodParticipate:         "participate",
	MethodCancelParticipation: "cancelParticipation",
	MethodStart:               "start",
	MethodFinish:              "finish",
}

var methodsByName = func() map[string]Method {
	m := make(map[string]Method, len(methodNames))
	for method, name := range methodNames {
		m[name] = method
	}
	return m
}()

func (m Method) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return fmt.Sprintf("method(%d)", uint8(m))
}

func (m Method) Bytes() []byte {
	return []byte(m.String())
}

// ParseMethod matches arg exactly against the method table.
func ParseMethod(arg []byte) (Method, error) {
	m, ok := methodsByName[string(arg)]
	if !ok {
		return 0, fmt.Errorf("%w: %q", contracterrors.ErrUnknownMethod, arg)
	}
	return m, nil
}

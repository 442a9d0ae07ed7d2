package gateway

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func TestClassifyAPIErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{
			"not modified",
			&tele.Error{Code: 400, Description: "Bad Request: message is not modified"},
			KindNotModified,
		},
		{
			"edit target gone",
			&tele.Error{Code: 400, Description: "Bad Request: message to edit not found"},
			KindNotFound,
		},
		{
			"delete target gone",
			&tele.Error{Code: 400, Description: "Bad Request: message to delete not found"},
			KindNotFound,
		},
		{
			"aged out of editability",
			&tele.Error{Code: 400, Description: "Bad Request: message can't be edited"},
			KindNotFound,
		},
		{
			"blocked",
			&tele.Error{Code: 403, Description: "Forbidden: bot was blocked by the user"},
			KindUnreachable,
		},
		{
			"deactivated",
			&tele.Error{Code: 403, Description: "Forbidden: user is deactivated"},
			KindUnreachable,
		},
		{
			"chat gone",
			&tele.Error{Code: 400, Description: "Bad Request: chat not found"},
			KindUnreachable,
		},
		{
			"other forbidden",
			&tele.Error{Code: 403, Description: "Forbidden: not enough rights"},
			KindForbidden,
		},
		{
			"server error",
			&tele.Error{Code: 502, Description: "Bad Gateway"},
			KindTransient,
		},
		{
			"other client error",
			&tele.Error{Code: 400, Description: "Bad Request: text is too long"},
			KindPermanent,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			classified := Classify(tc.err)
			assert.Equal(t, tc.want, KindOf(classified))
		})
	}
}

func TestClassifyFloodError(t *testing.T) {
	flood := tele.FloodError{
		RetryAfter: 7,
	}
	classified := Classify(flood)

	var ge *Error
	require.ErrorAs(t, classified, &ge)
	assert.Equal(t, KindRateLimited, ge.Kind)
	assert.Equal(t, 7*time.Second, ge.RetryAfter)
	assert.True(t, ge.Kind.Retryable())
}

func TestClassifyNetworkAndUnknown(t *testing.T) {
	dial := &net.OpError{Op: "dial", Err: errors.New("connection refused")}
	assert.Equal(t, KindTransient, KindOf(Classify(dial)))

	assert.Equal(t, KindPermanent, KindOf(Classify(errors.New("weird"))))
	assert.False(t, KindPermanent.Retryable())
}

func TestClassifyIsIdempotent(t *testing.T) {
	orig := Classify(&tele.Error{Code: 400, Description: "message is not modified"})
	again := Classify(orig)
	assert.Same(t, orig, again)
}

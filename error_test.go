package bdispatch_test

import (
	"testing"

	"github.com/advdv/bdispatch"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestErrorCode(t *testing.T) {
	err1 := bdispatch.NewError(bdispatch.CodeBadRequest, errors.New("foo"))
	require.Equal(t, bdispatch.Code(400), err1.Code())
	require.Equal(t, bdispatch.CodeBadRequest, bdispatch.CodeOf(err1))
	require.Equal(t, "Bad Request: foo", err1.Error())

	require.Equal(t, bdispatch.CodeUnknown, bdispatch.CodeOf(errors.New("bar")))
	require.Equal(t, "Unknown: rab", bdispatch.NewError(900, errors.New("rab")).Error())

	wrapped := errors.Wrap(bdispatch.Errorf(bdispatch.CodeNotFound, "no %s", "user"), "lookup")
	require.Equal(t, bdispatch.CodeNotFound, bdispatch.CodeOf(wrapped))
	require.Equal(t, "lookup: Not Found: no user", wrapped.Error())
	require.Equal(t, "Conflict", bdispatch.NewError(bdispatch.CodeConflict, nil).Error())
}

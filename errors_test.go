package mvcore_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/mvcore"
)

func TestNotFoundError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := mvcore.NewNotFoundError("User")
		assert.Equal(t, "mvcore: User not found", err.Error())
		err = mvcore.NewNotFoundErrorWithID("User", 7)
		assert.Equal(t, "mvcore: User not found (id=7)", err.Error())
		assert.Equal(t, 7, err.ID())
		assert.Equal(t, "User", err.Label())
	})

	t.Run("Is", func(t *testing.T) {
		err := mvcore.NewNotFoundError("Post")
		assert.True(t, errors.Is(err, mvcore.ErrNotFound))
	})

	t.Run("IsNotFound", func(t *testing.T) {
		err := mvcore.NewNotFoundError("Comment")
		assert.True(t, mvcore.IsNotFound(err))

		wrapped := fmt.Errorf("wrapper: %w", err)
		assert.True(t, mvcore.IsNotFound(wrapped))

		assert.True(t, mvcore.IsNotFound(mvcore.ErrNotFound))

		assert.False(t, mvcore.IsNotFound(errors.New("other error")))
		assert.False(t, mvcore.IsNotFound(nil))
	})
}

func TestConstraintError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := mvcore.NewConstraintError("UNIQUE constraint failed", nil)
		assert.Equal(t, "mvcore: constraint failed: UNIQUE constraint failed", err.Error())
	})

	t.Run("Unwrap", func(t *testing.T) {
		underlying := errors.New("db error")
		err := mvcore.NewConstraintError("constraint violated", underlying)
		assert.True(t, errors.Is(err, underlying))
	})

	t.Run("IsConstraintError", func(t *testing.T) {
		err := mvcore.NewConstraintError("check failed", nil)
		assert.True(t, mvcore.IsConstraintError(err))

		wrapped := fmt.Errorf("wrapper: %w", err)
		assert.True(t, mvcore.IsConstraintError(wrapped))

		assert.False(t, mvcore.IsConstraintError(errors.New("other error")))
		assert.False(t, mvcore.IsConstraintError(nil))
	})

	t.Run("Wrap", func(t *testing.T) {
		dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'a@b.c' for key 'email'"}
		err := mvcore.WrapConstraintError(fmt.Errorf("insert: %w", dup))
		require.True(t, mvcore.IsConstraintError(err))
		assert.Contains(t, err.Error(), "unique: ")

		var me *mysql.MySQLError
		assert.True(t, errors.As(err, &me))

		other := errors.New("connection refused")
		assert.Same(t, other, mvcore.WrapConstraintError(other))
		assert.NoError(t, mvcore.WrapConstraintError(nil))
	})
}

func TestValidationError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := mvcore.NewValidationError("email", errors.New("invalid format"))
		assert.Equal(t, `mvcore: validation failed for "email": invalid format`, err.Error())
	})

	t.Run("Unwrap", func(t *testing.T) {
		underlying := errors.New("too short")
		err := mvcore.NewValidationError("name", underlying)
		assert.True(t, errors.Is(err, underlying))
	})

	t.Run("IsValidationError", func(t *testing.T) {
		err := mvcore.NewValidationError("age", errors.New("must be positive"))
		assert.True(t, mvcore.IsValidationError(err))

		wrapped := fmt.Errorf("wrapper: %w", err)
		assert.True(t, mvcore.IsValidationError(wrapped))

		assert.False(t, mvcore.IsValidationError(errors.New("other error")))
		assert.False(t, mvcore.IsValidationError(nil))
	})
}

func TestRollbackError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := &mvcore.RollbackError{Err: errors.New("connection lost")}
		assert.Equal(t, "mvcore: rollback failed: connection lost", err.Error())
	})

	t.Run("Unwrap", func(t *testing.T) {
		underlying := errors.New("timeout")
		err := &mvcore.RollbackError{Err: underlying}
		assert.True(t, errors.Is(err, underlying))
	})
}

func TestAggregateError(t *testing.T) {
	t.Run("NoErrors", func(t *testing.T) {
		assert.Nil(t, mvcore.NewAggregateError())
		assert.Nil(t, mvcore.NewAggregateError(nil, nil, nil))
	})

	t.Run("SingleError", func(t *testing.T) {
		single := errors.New("single error")
		assert.Equal(t, single, mvcore.NewAggregateError(nil, single, nil))
	})

	t.Run("MultipleErrors", func(t *testing.T) {
		err := mvcore.NewAggregateError(errors.New("error 1"), errors.New("error 2"))
		require.NotNil(t, err)
		assert.Contains(t, err.Error(), "multiple errors")
		assert.Contains(t, err.Error(), "[1] error 1")
		assert.Contains(t, err.Error(), "[2] error 2")
	})
}

func TestQueryAndMutationError(t *testing.T) {
	cause := errors.New("boom")

	qe := mvcore.NewQueryError("User", "find", cause)
	assert.Equal(t, "mvcore: querying User (find): boom", qe.Error())
	assert.True(t, mvcore.IsQueryError(fmt.Errorf("x: %w", qe)))
	assert.True(t, errors.Is(qe, cause))
	assert.Equal(t, "mvcore: querying User: boom", mvcore.NewQueryError("User", "", cause).Error())

	me := mvcore.NewMutationError("User", "save", cause)
	assert.Equal(t, "mvcore: save User: boom", me.Error())
	assert.True(t, mvcore.IsMutationError(me))
	assert.False(t, mvcore.IsMutationError(qe))
	assert.True(t, errors.Is(me, cause))
}

func TestSentinelErrors(t *testing.T) {
	for _, err := range []error{
		mvcore.ErrNotFound,
		mvcore.ErrTxStarted,
		mvcore.ErrTxDone,
		mvcore.ErrNotPersisted,
		mvcore.ErrUnknownRelation,
	} {
		assert.Contains(t, err.Error(), "mvcore: ")
	}
	assert.Contains(t, mvcore.ErrTxStarted.Error(), "transaction")
}

func BenchmarkErrors(b *testing.B) {
	b.Run("NewNotFoundError", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = mvcore.NewNotFoundError("User")
		}
	})

	b.Run("IsNotFound", func(b *testing.B) {
		err := mvcore.NewNotFoundError("User")
		for i := 0; i < b.N; i++ {
			_ = mvcore.IsNotFound(err)
		}
	})

	b.Run("WrapConstraintError", func(b *testing.B) {
		err := errors.New("UNIQUE constraint failed: users.email")
		for i := 0; i < b.N; i++ {
			_ = mvcore.WrapConstraintError(err)
		}
	})
}

package interrupt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRequestRunsHandlersInReverse(t *testing.T) {
	var order []int
	AddHandler(func() { order = append(order, 1) })
	AddHandler(func() { order = append(order, 2) })
	assert.False(t, Requested())
	Request()
	Request()
	select {
	case <-HandlersDone:
	case <-time.After(5 * time.Second):
		t.Fatal("handlers did not run")
	}
	assert.True(t, Requested())
	assert.Equal(t, []int{2, 1}, order)
}

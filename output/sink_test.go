package output

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	subjects []string
	payloads [][]byte
	fail     bool
}

func (p *recordingPublisher) Publish(subject string, data []byte) error {
	if p.fail {
		return fmt.Errorf("publish failed")
	}
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return nil
}

func TestNATSSink_Deliver(t *testing.T) {
	pub := &recordingPublisher{}
	sink := NewNATSSink(pub, "", nil)

	events := []map[string]any{{"path": "/a", "count": float64(3)}}
	sink.Deliver("Q1", events)

	require.Len(t, pub.subjects, 1)
	assert.Equal(t, "norikra.query.Q1", pub.subjects[0])

	var batch resultBatch
	require.NoError(t, json.Unmarshal(pub.payloads[0], &batch))
	assert.Equal(t, "Q1", batch.Query)
	assert.Equal(t, events, batch.Events)
}

func TestNATSSink_PublishFailureIsDropped(t *testing.T) {
	pub := &recordingPublisher{fail: true}
	sink := NewNATSSink(pub, "results", nil)

	// Must not panic or block.
	sink.Deliver("Q1", []map[string]any{{"x": 1}})
	assert.Empty(t, pub.subjects)
}

func TestTee(t *testing.T) {
	var first, second []string
	a := SinkFunc(func(q string, _ []map[string]any) { first = append(first, q) })
	b := SinkFunc(func(q string, _ []map[string]any) { second = append(second, q) })

	tee := NewTee(a)
	detach := tee.Attach(b)
	tee.Deliver("Q1", nil)

	assert.Equal(t, []string{"Q1"}, first)
	assert.Equal(t, []string{"Q1"}, second)

	detach()
	tee.Deliver("Q2", nil)
	assert.Equal(t, []string{"Q1", "Q2"}, first)
	assert.Equal(t, []string{"Q1"}, second)
}

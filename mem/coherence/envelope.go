package coherence

// An Envelope is a message together with the cycle at which it must be
// delivered.
type Envelope struct {
	Msg          *Msg
	DeliveryTime uint64
	AckRequired  bool
}

// An EnvelopeQueue keeps envelopes ordered by delivery time. Envelopes with
// the same delivery time keep their insertion order.
type EnvelopeQueue struct {
	envelopes []Envelope
}

// Push inserts an envelope.
func (q *EnvelopeQueue) Push(env Envelope) {
	i := len(q.envelopes)
	for i > 0 && q.envelopes[i-1].DeliveryTime > env.DeliveryTime {
		i--
	}

	q.envelopes = append(q.envelopes, Envelope{})
	copy(q.envelopes[i+1:], q.envelopes[i:])
	q.envelopes[i] = env
}

// Peek returns the earliest envelope.
func (q *EnvelopeQueue) Peek() (Envelope, bool) {
	if len(q.envelopes) == 0 {
		return Envelope{}, false
	}

	return q.envelopes[0], true
}

// Len returns the number of envelopes queued.
func (q *EnvelopeQueue) Len() int {
	return len(q.envelopes)
}

// Drain removes and returns all the envelopes in delivery order.
func (q *EnvelopeQueue) Drain() []Envelope {
	envs := q.envelopes
	q.envelopes = nil

	return envs
}

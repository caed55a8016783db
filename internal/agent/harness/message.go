package harness

// DefaultMessage is the canned conversation sent by a local run when no
// message is given. It is deliberately off-topic so the greeter has to steer
// the customer back to their internet problem.
const DefaultMessage = `
Virtual Agent: Hi, I am a vehicle sales agent. How can I help you?
User: I'd like to buy a car.
Virtual Agent: Can I interest you in a boat?
User: No, a car.
Virtual Agent: This boat will be $10,000.
User: Goodbye.
`

// Package loop coordinates the slideshow loop across callbacks.
//
// The display client drives the loop: each step batch ends with an Idle and
// a SendEvent, and the client calls back on its own once the delay has
// elapsed. The server keeps nothing between calls except the generation in
// the conversation state, so the Controller:
//   - rebuilds the loop from the tick payload carried by each callback
//   - drops callbacks stamped with a superseded generation
//   - ends the loop once the wall-clock deadline has passed
//
// Two loops can have callbacks in flight at the same time (the old camera's
// pending tick and the new camera's first one). Requests for one
// conversation are delivered one at a time, so comparing generations is the
// only exclusion needed.
package loop

package machine

// Unit is the unit value: the empty symbol. It is what a Let evaluates to,
// what a resolved send resumes with, and the result of a program whose
// pipeline ends on one.
const Unit = Symbol("")

// Package core defines the shared data model of meshbot: role-tagged
// conversation messages, tool call/result pairs and the error types used
// across stores. Everything here is dependency-light so that higher layers
// (engine, tool, session, memory) can share types without import cycles.
package core

// Package task manages background execution of generation runs. It provides
// a bounded in-memory queue consumed by a fixed set of workers, so that HTTP
// handlers return as soon as a generation is persisted, and a recovery step
// that finalizes generations interrupted by an application restart.
package task

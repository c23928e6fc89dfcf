// Package pei models an Individualized Education Plan (Plano Educacional
// Individualizado): a student's development goals, the strategies planned for
// each goal and a dated log of progress observations.
//
// # Snapshots
//
// A PEI value is treated as an immutable snapshot. GoalManager,
// StrategyManager and ProgressManager never modify their input; every
// operation returns a new PEI built from a deep copy (see PEI.Clone).
// Operations addressing a goal, strategy or record that does not exist
// return the input unchanged instead of failing.
//
// # Goal status
//
//	not_started ──(minor/significant progress)──▶ in_progress
//	     │                                            │
//	     └──────────(achieved record)──────────▶ achieved
//
// Any status may be set to achieved or canceled through GoalManager.UpdateGoal.
// A goal that has left not_started cannot be put back there.
//
// # Analytics
//
// OverallProgress, ProgressTrends, GoalsByDomain, ProgressDistribution and
// OverdueGoals are pure functions of a snapshot.
package pei

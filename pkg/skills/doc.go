// Package skills provides the built-in generic skills.
//
// get_clause_context and find_defined_terms are pure document lookups.
// compare_baseline measures the clause against the domain plugin's preferred
// wording, and assess_deviation asks the model to grade that deviation,
// degrading to the similarity score when the model is unavailable.
//
// find_defined_terms and assess_deviation read earlier outputs from the task's
// skill context, so checklists list them after the skills they depend on.
package skills

/*
go-reideval computes retrieval quality diagnostics for person
re-identification (ReID) models.

Given feature embeddings for a query set and a gallery set, along with the
person and camera label of every item, an Evaluator builds the cosine
similarity matrix, ranks the gallery for every query and derives which ranked
results are true matches.  Gallery items that share both person and camera
with a query are treated as junk and removed before correctness is judged.

From that the Evaluator reports CMC and mAP, the most instructive correct and
incorrect top-k results, and the similarity samples needed to plot positive vs
negative and same vs different camera distributions.

Feature extraction, rendering and storage are kept outside the Evaluator.  See
the embed, feature, history and report subpackages and the reideval command
for adapters over them.
*/
package reideval

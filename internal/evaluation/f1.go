// Package evaluation calibrates the match-score threshold against labelled
// (query, article) pairs and measures how far the calibrated classifier is
// from chance: grid search, leave-one-out, bootstrap confidence intervals
// and a label-permutation test.
package evaluation

import (
	apperrors "github.com/eventdetection/event-detection/pkg/errors"
)

// Precision is tp/(tp+fp), and 1 when nothing was predicted positive.
func Precision(tp, fp int) float64 {
	if tp+fp == 0 {
		return 1
	}
	return float64(tp) / float64(tp+fp)
}

// Recall is tp/(tp+fn), and 1 when nothing is actually positive.
func Recall(tp, fn int) float64 {
	if tp+fn == 0 {
		return 1
	}
	return float64(tp) / float64(tp+fn)
}

// CalculateF1 is the harmonic mean of precision and recall. It is 0 when
// tp, fp and fn are all zero or when precision+recall is 0.
func CalculateF1(tp, fp, fn int) float64 {
	if tp+fp+fn == 0 {
		return 0
	}
	p, r := Precision(tp, fp), Recall(tp, fn)
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// Counts is a confusion matrix.
type Counts struct {
	TP int `json:"tp"`
	FP int `json:"fp"`
	FN int `json:"fn"`
	TN int `json:"tn"`
}

// Add records one classification.
func (c *Counts) Add(predicted, actual bool) {
	switch {
	case predicted && actual:
		c.TP++
	case predicted && !actual:
		c.FP++
	case !predicted && actual:
		c.FN++
	default:
		c.TN++
	}
}

// Remove undoes Add.
func (c *Counts) Remove(predicted, actual bool) {
	switch {
	case predicted && actual:
		c.TP--
	case predicted && !actual:
		c.FP--
	case !predicted && actual:
		c.FN--
	default:
		c.TN--
	}
}

// Total returns the number of classified pairs.
func (c Counts) Total() int {
	return c.TP + c.FP + c.FN + c.TN
}

// F1 returns CalculateF1 over c. Zero classified pairs is a computation
// error.
func (c Counts) F1() (float64, error) {
	if c.Total() == 0 {
		return 0, apperrors.New(apperrors.ErrComputation, 0, "F1 over zero pairs")
	}
	return CalculateF1(c.TP, c.FP, c.FN), nil
}

// Precision returns Precision(c.TP, c.FP).
func (c Counts) Precision() float64 {
	return Precision(c.TP, c.FP)
}

// Recall returns Recall(c.TP, c.FN).
func (c Counts) Recall() float64 {
	return Recall(c.TP, c.FN)
}

// Package regression fits an ordinary least squares line of sea level
// against year and evaluates it over a range of years.
//
// Fit reports the same quantities as a classic two-variable linear
// regression: slope, intercept, correlation coefficient, the two-sided
// p-value of the slope under a Student's t distribution with n-2 degrees
// of freedom, and the standard errors of slope and intercept. Coefficients
// come from gonum's stat.LinearRegression; the p-value uses distuv.StudentsT.
package regression

/*
Copyright © 2024 the mortsmooth authors.
This file is part of mortsmooth.

Mortsmooth is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Mortsmooth is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with mortsmooth.  If not, see <http://www.gnu.org/licenses/>.
*/

// Command mortsmooth estimates under-five mortality from survey birth
// histories using Bayesian spatio-temporal smoothing.
package main

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smallarea/mortsmooth/mortsmoothutil"
)

func init() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
}

func main() {
	if err := mortsmoothutil.Root.Execute(); err != nil {
		os.Exit(1)
	}
}

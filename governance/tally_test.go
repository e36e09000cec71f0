// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package governance_test

import (
	"testing"

	"github.com/blinklabs-io/squadgov/database/models"
	"github.com/blinklabs-io/squadgov/governance"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestTally(t *testing.T) {
	votes := []models.Vote{
		{Choice: models.VoteChoiceUp, VoterPointsAtCast: 400},
		{Choice: models.VoteChoiceUp, VoterPointsAtCast: 200},
		{Choice: models.VoteChoiceDown, VoterPointsAtCast: 100},
		{Choice: models.VoteChoiceAbstain, VoterPointsAtCast: 9000},
	}
	result := governance.Tally(votes)
	assert.Equal(t, governance.TallyResult{
		UpWeight:     600,
		DownWeight:   100,
		AbstainCount: 1,
		UpCount:      2,
		DownCount:    1,
		NetWeight:    500,
		TotalVoters:  4,
	}, result)
	assert.True(t, governance.Decide(result, 0))
	assert.False(t, governance.Decide(result, 500))
	assert.True(t, governance.Decide(result, 499))
}

func TestTallyEmpty(t *testing.T) {
	result := governance.Tally(nil)
	assert.Equal(t, governance.TallyResult{}, result)
	assert.False(t, governance.Decide(result, 0))
}

func TestDecideProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	weights := gen.SliceOf(gen.Int64Range(0, 1_000_000))

	properties.Property("a tie at the threshold never passes", prop.ForAll(
		func(up []int64, down []int64) bool {
			result := governance.Tally(buildVotes(up, down))
			return !governance.Decide(result, result.NetWeight)
		},
		weights,
		weights,
	))

	properties.Property("pass iff net weight exceeds threshold", prop.ForAll(
		func(up []int64, down []int64, threshold int64) bool {
			result := governance.Tally(buildVotes(up, down))
			return governance.Decide(result, threshold) ==
				(result.UpWeight-result.DownWeight > threshold)
		},
		weights,
		weights,
		gen.Int64Range(-1_000_000, 1_000_000),
	))

	properties.Property("voter counts add up", prop.ForAll(
		func(up []int64, down []int64) bool {
			result := governance.Tally(buildVotes(up, down))
			return result.UpCount == int64(len(up)) &&
				result.DownCount == int64(len(down)) &&
				result.TotalVoters == result.UpCount+result.DownCount+result.AbstainCount
		},
		weights,
		weights,
	))

	properties.TestingRun(t)
}

func buildVotes(up []int64, down []int64) []models.Vote {
	votes := make([]models.Vote, 0, len(up)+len(down)+1)
	for _, w := range up {
		votes = append(votes, models.Vote{Choice: models.VoteChoiceUp, VoterPointsAtCast: w})
	}
	for _, w := range down {
		votes = append(votes, models.Vote{Choice: models.VoteChoiceDown, VoterPointsAtCast: w})
	}
	votes = append(votes, models.Vote{Choice: models.VoteChoiceAbstain, VoterPointsAtCast: 42})
	return votes
}

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
package governance

import "github.com/blinklabs-io/squadgov/database/models"

// TallyResult is the aggregate of a proposal's votes. Abstentions are
// counted but carry no weight.
type TallyResult struct {
	UpWeight     int64
	DownWeight   int64
	AbstainCount int64
	UpCount      int64
	DownCount    int64
	NetWeight    int64
	TotalVoters  int64
}

// Tally sums the cast-time weights of votes
func Tally(votes []models.Vote) TallyResult {
	var ret TallyResult
	for _, vote := range votes {
		switch vote.Choice {
		case models.VoteChoiceUp:
			ret.UpWeight += vote.VoterPointsAtCast
			ret.UpCount++
		case models.VoteChoiceDown:
			ret.DownWeight += vote.VoterPointsAtCast
			ret.DownCount++
		case models.VoteChoiceAbstain:
			ret.AbstainCount++
		}
	}
	ret.TotalVoters = int64(len(votes))
	ret.NetWeight = ret.UpWeight - ret.DownWeight
	return ret
}

// Decide reports whether a tally passes. The net weight must be strictly
// greater than the threshold; a tie fails.
func Decide(result TallyResult, passThreshold int64) bool {
	return result.NetWeight > passThreshold
}

// finalTallyColumns are written together with the settlement status change
func finalTallyColumns(result TallyResult) map[string]any {
	return map[string]any{
		"final_up_votes_weight":     result.UpWeight,
		"final_down_votes_weight":   result.DownWeight,
		"final_abstain_votes_count": result.AbstainCount,
		"final_up_votes_count":      result.UpCount,
		"final_down_votes_count":    result.DownCount,
		"total_final_voters":        result.TotalVoters,
	}
}

func applyFinalTally(p *models.Proposal, result TallyResult) {
	p.FinalUpVotesWeight = result.UpWeight
	p.FinalDownVotesWeight = result.DownWeight
	p.FinalAbstainVotesCount = result.AbstainCount
	p.FinalUpVotesCount = result.UpCount
	p.FinalDownVotesCount = result.DownCount
	p.TotalFinalVoters = result.TotalVoters
}
